package models

import (
	"database/sql"
	"time"
)

// Notification types.
const (
	NotifyContactRequest  = "contact_request"
	NotifyContactAccepted = "contact_accepted"
	NotifyNewMessage      = "new_message"
)

// Notification is a per-user inbox entry describing an action taken by
// another user. Writing one is always best-effort relative to the
// operation that triggered it.
type Notification struct {
	ID            int64          `db:"id" json:"id"`
	UserID        int64          `db:"user_id" json:"user_id"`
	Type          string         `db:"type" json:"type"`
	ActorID       int64          `db:"actor_id" json:"actor_id"`
	ActorName     string         `db:"actor_name" json:"actor_name"`
	ActorEmail    string         `db:"actor_email" json:"actor_email"`
	ActorPhotoURL sql.NullString `db:"actor_photo_url" json:"actor_photo_url,omitempty"`
	Read          bool           `db:"read" json:"read"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
