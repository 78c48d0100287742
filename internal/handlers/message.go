package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"contact-service/internal/faults"
	"contact-service/internal/models"
	"contact-service/internal/observability"
	"contact-service/internal/plan"
	"contact-service/internal/repositories"
	"contact-service/internal/storage"
	"contact-service/internal/ws"
)

const defaultPageSize = 50

// MessageHandler manages the conversation endpoints.
type MessageHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	contactRepo repositories.ContactRepository
	userRepo    repositories.UserRepository
	notifRepo   repositories.NotificationRepository
	plans       *plan.Resolver
	store       storage.AttachmentStore
	hub         *ws.Hub
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, contactRepo repositories.ContactRepository, userRepo repositories.UserRepository, notifRepo repositories.NotificationRepository, plans *plan.Resolver, store storage.AttachmentStore, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		userRepo:    userRepo,
		notifRepo:   notifRepo,
		plans:       plans,
		store:       store,
		hub:         hub,
	}
}

// SendText stores a text message and broadcasts it.
func (h *MessageHandler) SendText(c *gin.Context) {
	conv, recipientID, ok := h.sendChecks(c)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, faults.New(faults.InvalidArgument, "message body is required"))
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), repositories.NewMessage{
		ConversationID: conv.ID,
		SenderID:       c.GetInt64("userID"),
		RecipientID:    recipientID,
		Body:           req.Body,
		Type:           models.MessageText,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	observability.IncMessageSent(models.MessageText)

	h.hub.BroadcastMessage(conv.ID, msg)
	h.pushBestEffort(c, recipientID)
	publishMessageEvent(c, "message.sent", conv.ID, msg.ID, models.MessageText)
	c.JSON(http.StatusCreated, msg)
}

// SendAttachment uploads a blob and stores the message pointing at it.
// The plan check runs before the upload so denied files never reach
// storage.
func (h *MessageHandler) SendAttachment(c *gin.Context) {
	conv, recipientID, ok := h.sendChecks(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	limits := h.plans.Limits(ctx, userID)
	if !limits.FileAttachments {
		respondError(c, faults.New(faults.PlanForbidden, "your plan does not include file attachments"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, faults.New(faults.InvalidArgument, "a file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	msgType := storage.ClassifyMIME(mimeType)

	att, err := h.store.Upload(ctx, conv.ID, fileHeader.Filename, mimeType, file)
	if err != nil {
		respondError(c, err)
		return
	}

	msg, err := h.messageRepo.CreateMessage(ctx, repositories.NewMessage{
		ConversationID: conv.ID,
		SenderID:       userID,
		RecipientID:    recipientID,
		Body:           c.PostForm("caption"),
		Type:           msgType,
		AttachmentURL:  att.URL,
		AttachmentName: att.Filename,
		AttachmentSize: att.Size,
	})
	if err != nil {
		// The blob is orphaned if this cleanup fails; GridFS entries
		// are cheap and a sweep can reclaim them.
		if delErr := h.store.Delete(ctx, att.ID); delErr != nil {
			log.Printf("attachment cleanup failed id=%s: %v", att.ID, delErr)
		}
		respondError(c, err)
		return
	}
	observability.IncMessageSent(msgType)

	h.hub.BroadcastMessage(conv.ID, msg)
	h.pushBestEffort(c, recipientID)
	publishMessageEvent(c, "message.sent", conv.ID, msg.ID, msgType)
	c.JSON(http.StatusCreated, msg)
}

// ListMessages returns a page of messages in chronological order,
// bounded by the caller's history window. Fetching a page also flags
// the caller's incoming messages as delivered.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	conv, ok := h.readChecks(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			respondError(c, faults.New(faults.InvalidArgument, "limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}
	var beforeID int64
	if raw := c.Query("before"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			respondError(c, faults.New(faults.InvalidArgument, "invalid before cursor"))
			return
		}
		beforeID = parsed
	}

	// The history window is part of the query, so pages stay full up
	// to the plan cutoff and an empty page means the history ended.
	var since time.Time
	limits := h.plans.Limits(ctx, userID)
	if limits.MessageHistoryDays != plan.Unlimited {
		since = time.Now().AddDate(0, 0, -limits.MessageHistoryDays)
	}

	msgs, err := h.messageRepo.ListMessages(ctx, conv.ID, limit, beforeID, since)
	if err != nil {
		respondError(c, err)
		return
	}

	// Storage order is newest first; clients render oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if err := h.messageRepo.MarkDelivered(ctx, conv.ID, userID); err != nil {
		log.Printf("mark delivered failed conversation_id=%s: %v", conv.ID, err)
	}

	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRead flips the caller's unread messages and zeroes their badge
// counter for the conversation.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conv, ok := h.readChecks(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	updated, err := h.messageRepo.MarkRead(c.Request.Context(), conv.ID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteMessage soft-deletes a message the caller sent and removes its
// attachment blob when one exists.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	conv, ok := h.readChecks(c)
	if !ok {
		return
	}

	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || messageID <= 0 {
		respondError(c, faults.New(faults.InvalidArgument, "invalid message id"))
		return
	}

	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	msg, err := h.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			respondError(c, faults.New(faults.NotFound, "message not found"))
			return
		}
		respondError(c, err)
		return
	}
	if msg.ConversationID != conv.ID {
		respondError(c, faults.New(faults.InvalidArgument, "message does not belong to conversation"))
		return
	}
	if msg.SenderID != userID {
		respondError(c, faults.New(faults.PermissionDenied, "only the sender can delete a message"))
		return
	}

	if msg.AttachmentURL.Valid {
		fileID := storage.FileIDFromURL(msg.AttachmentURL.String)
		if err := h.store.Delete(ctx, fileID); err != nil {
			log.Printf("attachment delete failed id=%s: %v", fileID, err)
		}
	}

	if err := h.messageRepo.SoftDelete(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			respondError(c, faults.New(faults.NotFound, "message not found"))
			return
		}
		respondError(c, err)
		return
	}

	h.hub.BroadcastDeletion(conv.ID, messageID)
	c.Status(http.StatusNoContent)
}

// DownloadAttachment streams a stored blob back to the client.
func (h *MessageHandler) DownloadAttachment(c *gin.Context) {
	fileID := c.Param("id")
	stream, att, err := h.store.Open(c.Request.Context(), fileID)
	if err != nil {
		respondError(c, faults.New(faults.NotFound, "attachment not found"))
		return
	}
	defer stream.Close()

	contentType := att.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, att.Size, contentType, stream, map[string]string{
		"Content-Disposition": `attachment; filename="` + att.Filename + `"`,
	})
}

// sendChecks validates that the caller can write into the conversation:
// member, accepted relationship, neither side blocked. Returns the
// conversation and the peer's id.
func (h *MessageHandler) sendChecks(c *gin.Context) (models.Conversation, int64, bool) {
	conv, ok := h.readChecks(c)
	if !ok {
		return models.Conversation{}, 0, false
	}

	userID := c.GetInt64("userID")
	peerID := conv.PeerOf(userID)

	contact, err := h.contactRepo.GetPair(c.Request.Context(), userID, peerID)
	if err != nil {
		respondPairError(c, err)
		return models.Conversation{}, 0, false
	}
	if contact.ABlocked || contact.BBlocked {
		respondError(c, faults.New(faults.Blocked, "messages cannot be sent in this conversation"))
		return models.Conversation{}, 0, false
	}
	if contact.Status != models.PairAccepted {
		respondError(c, faults.New(faults.PermissionDenied, "the contact request has not been accepted yet"))
		return models.Conversation{}, 0, false
	}
	return conv, peerID, true
}

// readChecks validates that the caller is a conversation member.
func (h *MessageHandler) readChecks(c *gin.Context) (models.Conversation, bool) {
	conversationID := c.Param("conversation_id")
	userID := c.GetInt64("userID")

	conv, err := h.convRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			respondError(c, faults.New(faults.NotFound, "conversation not found"))
			return models.Conversation{}, false
		}
		respondError(c, err)
		return models.Conversation{}, false
	}
	if !conv.HasParticipant(userID) {
		respondError(c, faults.New(faults.PermissionDenied, "not a conversation member"))
		return models.Conversation{}, false
	}
	return conv, true
}

// publishMessageEvent emits a message lifecycle event on the topic
// exchange. Publish failures never surface to the caller.
func publishMessageEvent(c *gin.Context, name, conversationID string, messageID int64, msgType string) {
	_ = observability.PublishEvent(c.Request.Context(), observability.RoutingKeyMessageEvents, observability.EventEnvelope{
		EventType: "message_events",
		EventName: name,
		Payload: map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      messageID,
			"type":            msgType,
		},
	}, observability.BuildHeaders(requestIDFromContext(c), ""))
}

// pushBestEffort writes a new-message inbox entry when the recipient's
// plan includes push notifications.
func (h *MessageHandler) pushBestEffort(c *gin.Context, recipientID int64) {
	ctx := c.Request.Context()
	if !h.plans.Limits(ctx, recipientID).PushNotifications {
		return
	}

	actor, err := h.userRepo.GetUser(ctx, c.GetInt64("userID"))
	if err != nil {
		log.Printf("push notification skipped, actor lookup failed: %v", err)
		return
	}
	notif := models.Notification{
		UserID:        recipientID,
		Type:          models.NotifyNewMessage,
		ActorID:       actor.ID,
		ActorName:     actor.DisplayName,
		ActorEmail:    actor.Email,
		ActorPhotoURL: actor.PhotoURL,
	}
	if err := h.notifRepo.Create(ctx, notif); err != nil {
		log.Printf("push notification write failed user_id=%d: %v", recipientID, err)
	}
}
