package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contact-service/internal/faults"
	"contact-service/internal/models"
	"contact-service/internal/repositories"
)

// NotificationHandler manages the per-user inbox endpoints.
type NotificationHandler struct {
	notifRepo repositories.NotificationRepository
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifRepo: notifRepo}
}

// List returns the caller's inbox, unread entries first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetInt64("userID")

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			respondError(c, faults.New(faults.InvalidArgument, "limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}

	notifs, err := h.notifRepo.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if notifs == nil {
		notifs = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifs})
}

// MarkRead flags one inbox entry as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || notificationID <= 0 {
		respondError(c, faults.New(faults.InvalidArgument, "invalid notification id"))
		return
	}

	userID := c.GetInt64("userID")
	if err := h.notifRepo.MarkRead(c.Request.Context(), notificationID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			respondError(c, faults.New(faults.NotFound, "notification not found"))
			return
		}
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
