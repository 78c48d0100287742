package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"contact-service/internal/models"
	"contact-service/internal/observability"
	"contact-service/internal/repositories"
)

// PresenceWebSocketHandler keeps a user's online flag in sync with
// their websocket connections and fans status changes out to accepted
// contacts.
type PresenceWebSocketHandler struct {
	hub         *Hub
	userRepo    repositories.UserRepository
	contactRepo repositories.ContactRepository
	jwtSecret   []byte
}

// NewPresenceWebSocketHandler constructs a PresenceWebSocketHandler.
func NewPresenceWebSocketHandler(hub *Hub, userRepo repositories.UserRepository, contactRepo repositories.ContactRepository, jwtSecret []byte) *PresenceWebSocketHandler {
	return &PresenceWebSocketHandler{hub: hub, userRepo: userRepo, contactRepo: contactRepo, jwtSecret: jwtSecret}
}

// Handle upgrades the connection, marks the user online and registers
// their device in the presence room.
func (h *PresenceWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("contact-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := userIDFromToken(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	wasEmpty := h.hub.PresenceRoomEmpty(userID)
	h.hub.AddPresenceClient(userID, conn, info)
	if wasEmpty {
		h.setOnline(ctx, userID, true)
	}

	observability.IncWSActive("presence")
	observability.IncWSEvent("presence", "ws_connect")
	_ = observability.PublishEvent(ctx, observability.RoutingKeyWSPresence, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsPayload("presence", fmt.Sprintf("%d", userID), "ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go func() {
		var closeReason string
		defer func() {
			h.hub.RemovePresenceClient(userID, conn)
			// Last device gone means the user went offline.
			if h.hub.PresenceRoomEmpty(userID) {
				h.setOnline(context.Background(), userID, false)
			}
			observability.DecWSActive("presence")
			observability.IncWSEvent("presence", "ws_disconnect")
			_ = observability.PublishEvent(ctx, observability.RoutingKeyWSPresence, observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsPayload("presence", fmt.Sprintf("%d", userID), "ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("presence", "ws_error")
				}
				return
			}
		}
	}()
}

func (h *PresenceWebSocketHandler) setOnline(ctx context.Context, userID int64, online bool) {
	if err := h.userRepo.SetOnline(ctx, userID, online); err != nil {
		log.Printf("presence update failed user_id=%d: %v", userID, err)
		return
	}

	presence, err := h.userRepo.GetPresence(ctx, userID)
	if err != nil {
		log.Printf("presence read failed user_id=%d: %v", userID, err)
		return
	}

	peers, err := h.contactRepo.AcceptedPeerIDs(ctx, userID)
	if err != nil {
		log.Printf("presence fanout skipped user_id=%d: %v", userID, err)
		return
	}
	h.hub.BroadcastPresence(peers, models.PresenceEvent{Type: "presence", Presence: &presence})
}
