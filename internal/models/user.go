package models

import (
	"database/sql"
	"time"
)

// User is a local snapshot of an identity-service account.
type User struct {
	ID          int64          `db:"id" json:"id"`
	Email       string         `db:"email" json:"email"`
	DisplayName string         `db:"display_name" json:"display_name"`
	PhotoURL    sql.NullString `db:"photo_url" json:"photo_url,omitempty"`
	Plan        string         `db:"plan" json:"plan"`
	IsOnline    bool           `db:"is_online" json:"is_online"`
	LastSeen    sql.NullTime   `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Presence is the online/last-seen view of a peer.
type Presence struct {
	UserID   int64      `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
