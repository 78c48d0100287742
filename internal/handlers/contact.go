package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"contact-service/internal/faults"
	"contact-service/internal/models"
	"contact-service/internal/observability"
	"contact-service/internal/plan"
	"contact-service/internal/repositories"
	"contact-service/internal/ws"
)

// ContactHandler manages the relationship endpoints.
type ContactHandler struct {
	contactRepo repositories.ContactRepository
	userRepo    repositories.UserRepository
	notifRepo   repositories.NotificationRepository
	plans       *plan.Resolver
	hub         *ws.Hub
}

// NewContactHandler builds a ContactHandler.
func NewContactHandler(contactRepo repositories.ContactRepository, userRepo repositories.UserRepository, notifRepo repositories.NotificationRepository, plans *plan.Resolver, hub *ws.Hub) *ContactHandler {
	return &ContactHandler{
		contactRepo: contactRepo,
		userRepo:    userRepo,
		notifRepo:   notifRepo,
		plans:       plans,
		hub:         hub,
	}
}

// SendRequest creates a pending relationship addressed by email.
func (h *ContactHandler) SendRequest(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, faults.New(faults.InvalidArgument, "a valid email is required"))
		return
	}

	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	peer, err := h.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			observability.IncContactOperation("request", "peer_not_found")
			respondError(c, faults.New(faults.PeerNotFound, "no account exists with that email"))
			return
		}
		respondError(c, err)
		return
	}
	if peer.ID == userID {
		observability.IncContactOperation("request", "self_request")
		respondError(c, faults.New(faults.SelfRequest, "you cannot add yourself as a contact"))
		return
	}

	if existing, err := h.contactRepo.GetPair(ctx, userID, peer.ID); err == nil {
		// One generic message regardless of which side blocked.
		if existing.ABlocked || existing.BBlocked {
			observability.IncContactOperation("request", "blocked")
			respondError(c, faults.New(faults.Blocked, "this contact request cannot be sent"))
			return
		}
		observability.IncContactOperation("request", "duplicate")
		if existing.Status == models.PairAccepted {
			respondError(c, faults.New(faults.DuplicateContact, "this user is already in your contacts"))
		} else {
			respondError(c, faults.New(faults.DuplicateContact, "a request with this user is already pending"))
		}
		return
	} else if !errors.Is(err, repositories.ErrContactNotFound) {
		respondError(c, err)
		return
	}

	limits := h.plans.Limits(ctx, userID)
	count, err := h.contactRepo.CountActive(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !limits.AllowsContacts(count) {
		observability.IncContactOperation("request", "capacity_exceeded")
		respondError(c, faults.Newf(faults.CapacityExceeded, "your plan allows at most %d contacts", limits.MaxContacts))
		return
	}

	contact, err := h.contactRepo.CreateRequest(ctx, userID, peer.ID)
	if err != nil {
		observability.IncContactOperation("request", "store_failure")
		respondError(c, err)
		return
	}
	observability.IncContactOperation("request", "ok")

	h.notifyBestEffort(ctx, c, peer.ID, models.NotifyContactRequest)
	h.hub.BroadcastContactEvent(peer.ID, models.ContactEvent{Type: "contact_request", PeerID: userID})
	publishContactEvent(c, "contact.request", userID, peer.ID)

	c.JSON(http.StatusCreated, gin.H{
		"peer_id":         peer.ID,
		"status":          models.EdgePending,
		"conversation_id": contact.ConversationID,
	})
}

// Accept confirms a request the caller received.
func (h *ContactHandler) Accept(c *gin.Context) {
	peerID, ok := parsePeerID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	contact, err := h.contactRepo.GetPair(ctx, userID, peerID)
	if err != nil {
		respondPairError(c, err)
		return
	}
	if contact.Status != models.PairPending || contact.RequestedBy != peerID {
		respondError(c, faults.New(faults.InvalidArgument, "there is no request from this user to accept"))
		return
	}
	if contact.BlockedBy(userID) {
		respondError(c, faults.New(faults.Blocked, "unblock this user before accepting"))
		return
	}

	limits := h.plans.Limits(ctx, userID)
	count, err := h.contactRepo.CountActive(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	// The pending row itself is already in the count.
	if !limits.AllowsContacts(count - 1) {
		observability.IncContactOperation("accept", "capacity_exceeded")
		respondError(c, faults.Newf(faults.CapacityExceeded, "your plan allows at most %d contacts", limits.MaxContacts))
		return
	}

	if err := h.contactRepo.SetStatus(ctx, contact.ID, models.PairAccepted); err != nil {
		respondPairError(c, err)
		return
	}
	observability.IncContactOperation("accept", "ok")

	h.notifyBestEffort(ctx, c, peerID, models.NotifyContactAccepted)
	h.hub.BroadcastContactEvent(peerID, models.ContactEvent{Type: "contact_accepted", PeerID: userID})
	publishContactEvent(c, "contact.accepted", userID, peerID)

	c.JSON(http.StatusOK, gin.H{
		"peer_id":         peerID,
		"status":          models.EdgeAccepted,
		"conversation_id": contact.ConversationID,
	})
}

// Reject discards a request the caller received. The relationship row
// disappears; the conversation shell stays behind.
func (h *ContactHandler) Reject(c *gin.Context) {
	peerID, ok := parsePeerID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	contact, err := h.contactRepo.GetPair(ctx, userID, peerID)
	if err != nil {
		respondPairError(c, err)
		return
	}
	if contact.Status != models.PairPending || contact.RequestedBy != peerID {
		respondError(c, faults.New(faults.InvalidArgument, "there is no request from this user to reject"))
		return
	}

	if err := h.contactRepo.Delete(ctx, contact.ID); err != nil {
		respondPairError(c, err)
		return
	}
	observability.IncContactOperation("reject", "ok")

	h.hub.BroadcastContactEvent(peerID, models.ContactEvent{Type: "contact_rejected", PeerID: userID})
	c.Status(http.StatusNoContent)
}

// Block hides the peer from the caller's side. Idempotent.
func (h *ContactHandler) Block(c *gin.Context) {
	h.setBlocked(c, true, "block")
}

// Unblock restores the caller's side. Idempotent.
func (h *ContactHandler) Unblock(c *gin.Context) {
	h.setBlocked(c, false, "unblock")
}

func (h *ContactHandler) setBlocked(c *gin.Context, blocked bool, operation string) {
	peerID, ok := parsePeerID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	contact, err := h.contactRepo.GetPair(ctx, userID, peerID)
	if err != nil {
		respondPairError(c, err)
		return
	}

	if err := h.contactRepo.SetBlocked(ctx, contact.ID, contact.SideOf(userID), blocked); err != nil {
		respondPairError(c, err)
		return
	}
	observability.IncContactOperation(operation, "ok")
	c.Status(http.StatusNoContent)
}

// Favorite sets or clears the caller's favorite flag on an accepted contact.
func (h *ContactHandler) Favorite(c *gin.Context) {
	peerID, ok := parsePeerID(c)
	if !ok {
		return
	}

	var req struct {
		Favorite *bool `json:"favorite" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, faults.New(faults.InvalidArgument, "favorite flag is required"))
		return
	}

	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	contact, err := h.contactRepo.GetPair(ctx, userID, peerID)
	if err != nil {
		respondPairError(c, err)
		return
	}

	// The flag rides on the caller's side of the row regardless of
	// status; a pending pair marked favorite stays marked once accepted.
	if err := h.contactRepo.SetFavorite(ctx, contact.ID, contact.SideOf(userID), *req.Favorite); err != nil {
		respondPairError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"peer_id": peerID, "favorite": *req.Favorite})
}

// ListContacts returns the caller's edge views, optionally filtered.
func (h *ContactHandler) ListContacts(c *gin.Context) {
	filter := c.DefaultQuery("filter", repositories.FilterAll)
	switch filter {
	case repositories.FilterAll, repositories.FilterAccepted, repositories.FilterReceived,
		repositories.FilterPending, repositories.FilterBlocked, repositories.FilterFavorites:
	default:
		respondError(c, faults.Newf(faults.InvalidArgument, "unknown filter %q", filter))
		return
	}

	userID := c.GetInt64("userID")
	edges, err := h.contactRepo.ListEdges(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if edges == nil {
		edges = []models.EdgeView{}
	}
	c.JSON(http.StatusOK, gin.H{"contacts": edges})
}

// UnreadTotal returns the sum of unread counters across all edges.
func (h *ContactHandler) UnreadTotal(c *gin.Context) {
	userID := c.GetInt64("userID")
	total, err := h.contactRepo.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

// PeerPresence returns a contact's online status, restricted to
// mutually unblocked accepted contacts. Callers without real-time
// status in their plan get the last-seen timestamp only.
func (h *ContactHandler) PeerPresence(c *gin.Context) {
	peerID, ok := parsePeerID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	contact, err := h.contactRepo.GetPair(ctx, userID, peerID)
	if err != nil {
		respondPairError(c, err)
		return
	}
	if contact.Status != models.PairAccepted || contact.ABlocked || contact.BBlocked {
		respondError(c, faults.New(faults.PermissionDenied, "presence is only visible for accepted contacts"))
		return
	}

	presence, err := h.userRepo.GetPresence(ctx, peerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.plans.Limits(ctx, userID).RealTimeStatus {
		presence.IsOnline = false
	}
	c.JSON(http.StatusOK, presence)
}

// notifyBestEffort writes an inbox entry for recipientID describing an
// action by the authenticated caller. Failures are logged, never
// surfaced: the triggering operation has already committed.
func (h *ContactHandler) notifyBestEffort(ctx context.Context, c *gin.Context, recipientID int64, notifType string) {
	actor, err := h.userRepo.GetUser(ctx, c.GetInt64("userID"))
	if err != nil {
		log.Printf("notification skipped, actor lookup failed: %v", err)
		return
	}
	notif := models.Notification{
		UserID:        recipientID,
		Type:          notifType,
		ActorID:       actor.ID,
		ActorName:     actor.DisplayName,
		ActorEmail:    actor.Email,
		ActorPhotoURL: actor.PhotoURL,
	}
	if err := h.notifRepo.Create(ctx, notif); err != nil {
		log.Printf("notification write failed type=%s user_id=%d: %v", notifType, recipientID, err)
	}
}

// publishContactEvent emits a relationship lifecycle event on the topic
// exchange. Publish failures never surface to the caller.
func publishContactEvent(c *gin.Context, name string, userID, peerID int64) {
	_ = observability.PublishEvent(c.Request.Context(), observability.RoutingKeyContactEvents, observability.EventEnvelope{
		EventType: "contact_events",
		EventName: name,
		Payload: map[string]interface{}{
			"user_id": userID,
			"peer_id": peerID,
		},
	}, observability.BuildHeaders(requestIDFromContext(c), ""))
}

func parsePeerID(c *gin.Context) (int64, bool) {
	peerID, err := strconv.ParseInt(c.Param("peer_id"), 10, 64)
	if err != nil || peerID <= 0 {
		respondError(c, faults.New(faults.InvalidArgument, "invalid peer id"))
		return 0, false
	}
	return peerID, true
}

func respondPairError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrContactNotFound) {
		respondError(c, faults.New(faults.NotFound, "no relationship with this user"))
		return
	}
	respondError(c, err)
}
