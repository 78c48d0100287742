package models

import (
	"database/sql"
	"time"
)

// Edge status values as seen from one side of the relationship.
const (
	EdgePending  = "pending"
	EdgeReceived = "received"
	EdgeAccepted = "accepted"
	EdgeBlocked  = "blocked"
)

// Pair status values stored on the relationship row.
const (
	PairPending  = "pending"
	PairAccepted = "accepted"
)

// Contact is the single source-of-truth row for a relationship between
// two users, keyed by the sorted pair (UserA < UserB). Per-side state
// (blocked, favorite, unread) lives in the a_/b_ columns; the per-user
// edge view is derived, never stored twice.
type Contact struct {
	ID             int64     `db:"id"`
	UserA          int64     `db:"user_a"`
	UserB          int64     `db:"user_b"`
	RequestedBy    int64     `db:"requested_by"`
	Status         string    `db:"status"`
	ABlocked       bool      `db:"a_blocked"`
	BBlocked       bool      `db:"b_blocked"`
	AFavorite      bool      `db:"a_favorite"`
	BFavorite      bool      `db:"b_favorite"`
	AUnread        int       `db:"a_unread"`
	BUnread        int       `db:"b_unread"`
	ConversationID string    `db:"conversation_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// SideOf reports whether userID is the A side of the row.
func (c Contact) SideOf(userID int64) (isA bool) {
	return c.UserA == userID
}

// PeerOf returns the other participant.
func (c Contact) PeerOf(userID int64) int64 {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// BlockedBy reports whether userID has blocked the peer.
func (c Contact) BlockedBy(userID int64) bool {
	if c.SideOf(userID) {
		return c.ABlocked
	}
	return c.BBlocked
}

// EdgeStatus derives the status of the relationship as seen by userID.
func (c Contact) EdgeStatus(userID int64) string {
	if c.BlockedBy(userID) {
		return EdgeBlocked
	}
	if c.Status == PairPending {
		if c.RequestedBy == userID {
			return EdgePending
		}
		return EdgeReceived
	}
	return EdgeAccepted
}

// EdgeView is one user's materialized view of a contact row, shaped for
// list rendering: peer snapshot plus the caller's own counters.
type EdgeView struct {
	PeerID          int64          `db:"peer_id" json:"peer_id"`
	PeerEmail       string         `db:"peer_email" json:"peer_email"`
	PeerDisplayName string         `db:"peer_display_name" json:"peer_display_name"`
	PeerPhotoURL    sql.NullString `db:"peer_photo_url" json:"peer_photo_url,omitempty"`
	Status          string         `db:"-" json:"status"`
	ConversationID  string         `db:"conversation_id" json:"conversation_id"`
	LastMessage     sql.NullString `db:"last_message" json:"last_message,omitempty"`
	LastMessageAt   sql.NullTime   `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadCount     int            `db:"unread_count" json:"unread_count"`
	IsFavorite      bool           `db:"is_favorite" json:"is_favorite"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`

	// Raw row columns needed to derive Status for the viewing user.
	PairStatus  string `db:"pair_status" json:"-"`
	RequestedBy int64  `db:"requested_by" json:"-"`
	OwnBlocked  bool   `db:"own_blocked" json:"-"`
}

// DeriveStatus fills Status from the raw pair columns for viewerID.
func (v *EdgeView) DeriveStatus(viewerID int64) {
	switch {
	case v.OwnBlocked:
		v.Status = EdgeBlocked
	case v.PairStatus == PairPending && v.RequestedBy == viewerID:
		v.Status = EdgePending
	case v.PairStatus == PairPending:
		v.Status = EdgeReceived
	default:
		v.Status = EdgeAccepted
	}
}
