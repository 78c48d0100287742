package models

import (
	"database/sql"
	"time"
)

// Conversation is the shared container for all messages between two users.
// It is created empty when a contact request is sent, before any message.
type Conversation struct {
	ID            string         `db:"id" json:"id"`
	UserA         int64          `db:"user_a" json:"user_a"`
	UserB         int64          `db:"user_b" json:"user_b"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	LastActivity  time.Time      `db:"last_activity" json:"last_activity"`
	LastMessage   sql.NullString `db:"last_message" json:"last_message,omitempty"`
	LastMessageAt sql.NullTime   `db:"last_message_at" json:"last_message_at,omitempty"`
	LastSenderID  sql.NullInt64  `db:"last_sender_id" json:"last_sender_id,omitempty"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int64) bool {
	return c.UserA == userID || c.UserB == userID
}

// PeerOf returns the other participant.
func (c Conversation) PeerOf(userID int64) int64 {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}
