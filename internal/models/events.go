package models

// ConversationEvent is broadcast through conversation websockets.
type ConversationEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID int64    `json:"message_id,omitempty"`
}

// PresenceEvent is broadcast to a user's contacts when their online
// status changes.
type PresenceEvent struct {
	Type     string    `json:"type"`
	Presence *Presence `json:"presence,omitempty"`
}

// ContactEvent is broadcast to a user's presence room when one of their
// edges changes (request received, accepted, rejected).
type ContactEvent struct {
	Type   string `json:"type"`
	PeerID int64  `json:"peer_id"`
}
