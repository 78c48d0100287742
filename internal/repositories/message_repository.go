package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"contact-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// NewMessage carries the fields for an appended message.
type NewMessage struct {
	ConversationID string
	SenderID       int64
	RecipientID    int64
	Body           string
	Type           string
	AttachmentURL  string
	AttachmentName string
	AttachmentSize int64
}

// MessageRepository abstracts message persistence. Appending a message
// commits the record, the conversation preview and the recipient's
// unread counter together, so a crash can never leave a message visible
// in history but missing from the badge count.
type MessageRepository interface {
	CreateMessage(ctx context.Context, params NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int, beforeID int64, since time.Time) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	MarkDelivered(ctx context.Context, conversationID string, recipientID int64) error
	MarkRead(ctx context.Context, conversationID string, readerID int64) (int, error)
	SoftDelete(ctx context.Context, messageID int64) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, body, type,
    attachment_url, attachment_name, attachment_size, read, delivered, created_at`

// CreateMessage appends a message and updates the denormalized preview
// and unread counter in one transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, params NewMessage) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	if err := tx.QueryRowxContext(ctx, `INSERT INTO messages
        (conversation_id, sender_id, recipient_id, body, type, attachment_url, attachment_name, attachment_size)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0))
        RETURNING `+messageColumns,
		params.ConversationID, params.SenderID, params.RecipientID,
		params.Body, params.Type, params.AttachmentURL, params.AttachmentName, params.AttachmentSize).
		StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	preview := msg.Preview()
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET
        last_message=$2, last_message_at=$3, last_sender_id=$4, last_activity=$3
        WHERE id=$1`, params.ConversationID, preview, msg.CreatedAt, params.SenderID); err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE contacts SET
        a_unread = a_unread + CASE WHEN user_a=$2 THEN 1 ELSE 0 END,
        b_unread = b_unread + CASE WHEN user_b=$2 THEN 1 ELSE 0 END,
        updated_at = NOW()
        WHERE conversation_id=$1`, params.ConversationID, params.RecipientID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessages returns up to limit messages in reverse-chronological
// storage order. beforeID > 0 fetches the page older than that message;
// a non-zero since bounds the page to messages created at or after it,
// so a full page always means more in-window history remains.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string, limit int, beforeID int64, since time.Time) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id=$1`
	args := []interface{}{conversationID}
	if beforeID > 0 {
		args = append(args, beforeID)
		query += fmt.Sprintf(" AND id < $%d", len(args))
	}
	if !since.IsZero() {
		args = append(args, since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkDelivered flags everything addressed to the recipient as delivered.
func (r *MessageRepo) MarkDelivered(ctx context.Context, conversationID string, recipientID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET delivered=TRUE
        WHERE conversation_id=$1 AND recipient_id=$2 AND delivered=FALSE`, conversationID, recipientID)
	return err
}

// MarkRead flips all unread messages addressed to the reader and zeroes
// the reader's unread counter in one transaction. Returns the number of
// messages flipped.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID string, readerID int64) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE messages SET read=TRUE, delivered=TRUE
        WHERE conversation_id=$1 AND recipient_id=$2 AND read=FALSE`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	flipped, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE contacts SET
        a_unread = CASE WHEN user_a=$2 THEN 0 ELSE a_unread END,
        b_unread = CASE WHEN user_b=$2 THEN 0 ELSE b_unread END,
        updated_at = NOW()
        WHERE conversation_id=$1`, conversationID, readerID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(flipped), nil
}

// SoftDelete replaces the body with the fixed placeholder, retypes the
// record and clears attachment fields. The row keeps its position.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET
        body=$2, type=$3, attachment_url=NULL, attachment_name=NULL, attachment_size=NULL
        WHERE id=$1`, messageID, models.DeletedPlaceholder, models.MessageDeleted)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
