package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"contact-service/internal/models"
	"contact-service/internal/observability"
)

// Hub maintains active websocket rooms. Conversation rooms carry
// message traffic; presence rooms carry per-user status and contact
// events to every device that user has connected.
type Hub struct {
	convRooms        map[string]map[*websocket.Conn]bool
	presenceRooms    map[int64]map[*websocket.Conn]bool
	convConnInfo     map[string]map[*websocket.Conn]ConnInfo
	presenceConnInfo map[int64]map[*websocket.Conn]ConnInfo
	mu               sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		convRooms:        make(map[string]map[*websocket.Conn]bool),
		presenceRooms:    make(map[int64]map[*websocket.Conn]bool),
		convConnInfo:     make(map[string]map[*websocket.Conn]ConnInfo),
		presenceConnInfo: make(map[int64]map[*websocket.Conn]ConnInfo),
	}
}

// AddConversationClient registers a websocket connection to a conversation room.
func (h *Hub) AddConversationClient(conversationID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.convRooms[conversationID]; !ok {
		h.convRooms[conversationID] = make(map[*websocket.Conn]bool)
	}
	h.convRooms[conversationID][conn] = true
	if _, ok := h.convConnInfo[conversationID]; !ok {
		h.convConnInfo[conversationID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.convConnInfo[conversationID][conn] = info
}

// RemoveConversationClient removes a conversation websocket connection.
func (h *Hub) RemoveConversationClient(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.convRooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.convRooms, conversationID)
		}
	}
	if infos, ok := h.convConnInfo[conversationID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.convConnInfo, conversationID)
		}
	}
}

// AddPresenceClient registers one of a user's devices to their presence room.
func (h *Hub) AddPresenceClient(userID int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.presenceRooms[userID]; !ok {
		h.presenceRooms[userID] = make(map[*websocket.Conn]bool)
	}
	h.presenceRooms[userID][conn] = true
	if _, ok := h.presenceConnInfo[userID]; !ok {
		h.presenceConnInfo[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.presenceConnInfo[userID][conn] = info
}

// RemovePresenceClient removes a presence websocket connection.
func (h *Hub) RemovePresenceClient(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.presenceRooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.presenceRooms, userID)
		}
	}
	if infos, ok := h.presenceConnInfo[userID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.presenceConnInfo, userID)
		}
	}
}

// PresenceRoomEmpty reports whether the user has no devices connected.
func (h *Hub) PresenceRoomEmpty(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.presenceRooms[userID]) == 0
}

// BroadcastMessage sends a message to all clients in a conversation.
func (h *Hub) BroadcastMessage(conversationID string, msg models.Message) {
	h.mu.RLock()
	conns := h.convRooms[conversationID]
	h.mu.RUnlock()

	event := models.ConversationEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveConversationClient(conversationID, conn)
			h.publishConvError(conversationID, conn, err)
		}
	}
}

// BroadcastDeletion notifies conversation clients of a deleted message.
func (h *Hub) BroadcastDeletion(conversationID string, messageID int64) {
	h.mu.RLock()
	conns := h.convRooms[conversationID]
	h.mu.RUnlock()

	event := models.ConversationEvent{Type: "message_deleted", MessageID: messageID}
	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveConversationClient(conversationID, conn)
			h.publishConvError(conversationID, conn, err)
		}
	}
}

// BroadcastPresence fans a presence change out to each listed user's
// presence room.
func (h *Hub) BroadcastPresence(userIDs []int64, event models.PresenceEvent) {
	payload, _ := json.Marshal(event)
	for _, userID := range userIDs {
		h.mu.RLock()
		conns := h.presenceRooms[userID]
		h.mu.RUnlock()

		for conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error: %v", err)
				conn.Close()
				h.RemovePresenceClient(userID, conn)
			}
		}
	}
}

// BroadcastContactEvent notifies one user's devices of an edge change.
func (h *Hub) BroadcastContactEvent(userID int64, event models.ContactEvent) {
	h.mu.RLock()
	conns := h.presenceRooms[userID]
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemovePresenceClient(userID, conn)
		}
	}
}

func (h *Hub) publishConvError(conversationID string, conn *websocket.Conn, err error) {
	h.mu.RLock()
	infos, ok := h.convConnInfo[conversationID]
	var info ConnInfo
	if ok {
		info, ok = infos[conn]
	}
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "conversation",
			"resource_id": conversationID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   fmt.Sprintf("%d", info.UserID),
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), observability.RoutingKeyWSConversations, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("conversation", "ws_error")
}
