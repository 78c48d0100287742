package models

import (
	"database/sql"
	"time"
)

// Message types. Deleted is a soft state: the record stays in place so
// conversation ordering and length are preserved.
const (
	MessageText    = "text"
	MessageImage   = "image"
	MessagePDF     = "pdf"
	MessageFile    = "file"
	MessageDeleted = "deleted"
)

// DeletedPlaceholder replaces the body of a soft-deleted message.
const DeletedPlaceholder = "Mensaje eliminado"

// Preview strings substituted for attachment bodies in contact lists.
const (
	PreviewImage = "[Imagen]"
	PreviewPDF   = "[PDF]"
	PreviewFile  = "[Archivo]"
)

// Message is a single entry in a conversation log.
type Message struct {
	ID             int64          `db:"id" json:"id"`
	ConversationID string         `db:"conversation_id" json:"conversation_id"`
	SenderID       int64          `db:"sender_id" json:"sender_id"`
	RecipientID    int64          `db:"recipient_id" json:"recipient_id"`
	Body           string         `db:"body" json:"body"`
	Type           string         `db:"type" json:"type"`
	AttachmentURL  sql.NullString `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentName sql.NullString `db:"attachment_name" json:"attachment_name,omitempty"`
	AttachmentSize sql.NullInt64  `db:"attachment_size" json:"attachment_size,omitempty"`
	Read           bool           `db:"read" json:"read"`
	Delivered      bool           `db:"delivered" json:"delivered"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// Preview returns the denormalized preview text stored on the
// conversation when this message is the latest one.
func (m Message) Preview() string {
	switch m.Type {
	case MessageImage:
		return PreviewImage
	case MessagePDF:
		return PreviewPDF
	case MessageFile:
		return PreviewFile
	case MessageDeleted:
		return DeletedPlaceholder
	default:
		return m.Body
	}
}
