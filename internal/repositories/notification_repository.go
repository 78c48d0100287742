package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"contact-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository abstracts the per-user notification inbox.
type NotificationRepository interface {
	Create(ctx context.Context, notif models.Notification) error
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create inserts an inbox entry.
func (r *NotificationRepo) Create(ctx context.Context, notif models.Notification) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications
        (user_id, type, actor_id, actor_name, actor_email, actor_photo_url)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		notif.UserID, notif.Type, notif.ActorID, notif.ActorName, notif.ActorEmail, notif.ActorPhotoURL)
	return err
}

// ListForUser returns the newest entries, unread first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	var notifs []models.Notification
	err := r.db.SelectContext(ctx, &notifs, `SELECT id, user_id, type, actor_id,
        actor_name, actor_email, actor_photo_url, read, created_at
        FROM notifications WHERE user_id=$1
        ORDER BY read ASC, created_at DESC LIMIT $2`, userID, limit)
	return notifs, err
}

// MarkRead flags one entry as read; scoped to the owner.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2`,
		notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
