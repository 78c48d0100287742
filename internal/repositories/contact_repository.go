package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"contact-service/internal/models"
)

var ErrContactNotFound = errors.New("contact not found")

// Edge list filters.
const (
	FilterAll       = "all"
	FilterAccepted  = "accepted"
	FilterReceived  = "received"
	FilterPending   = "pending"
	FilterBlocked   = "blocked"
	FilterFavorites = "favorites"
)

// ContactRepository abstracts relationship persistence. A relationship
// is one row per unordered pair; mutations are single statements or one
// transaction, so the two sides can never disagree.
type ContactRepository interface {
	CreateRequest(ctx context.Context, senderID, recipientID int64) (models.Contact, error)
	GetPair(ctx context.Context, userID, peerID int64) (models.Contact, error)
	CountActive(ctx context.Context, userID int64) (int, error)
	SetStatus(ctx context.Context, contactID int64, status string) error
	Delete(ctx context.Context, contactID int64) error
	SetBlocked(ctx context.Context, contactID int64, sideA, blocked bool) error
	SetFavorite(ctx context.Context, contactID int64, sideA, favorite bool) error
	ListEdges(ctx context.Context, userID int64, filter string) ([]models.EdgeView, error)
	TotalUnread(ctx context.Context, userID int64) (int, error)
	AcceptedPeerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// ContactRepo is a sqlx implementation of ContactRepository.
type ContactRepo struct {
	db *sqlx.DB
}

// NewContactRepo constructs a ContactRepo.
func NewContactRepo(db *sqlx.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

const contactColumns = `id, user_a, user_b, requested_by, status,
    a_blocked, b_blocked, a_favorite, b_favorite, a_unread, b_unread,
    conversation_id, created_at, updated_at`

func sortPair(x, y int64) (int64, int64) {
	if x < y {
		return x, y
	}
	return y, x
}

// CreateRequest allocates an empty conversation and the pending
// relationship row in one transaction.
func (r *ContactRepo) CreateRequest(ctx context.Context, senderID, recipientID int64) (models.Contact, error) {
	userA, userB := sortPair(senderID, recipientID)
	conversationID := uuid.NewString()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Contact{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (id, user_a, user_b) VALUES ($1, $2, $3)`,
		conversationID, userA, userB); err != nil {
		return models.Contact{}, err
	}

	var contact models.Contact
	if err := tx.QueryRowxContext(ctx, `INSERT INTO contacts (user_a, user_b, requested_by, conversation_id)
        VALUES ($1, $2, $3, $4)
        RETURNING `+contactColumns, userA, userB, senderID, conversationID).
		StructScan(&contact); err != nil {
		return models.Contact{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Contact{}, err
	}
	return contact, nil
}

// GetPair fetches the relationship row between two users.
func (r *ContactRepo) GetPair(ctx context.Context, userID, peerID int64) (models.Contact, error) {
	userA, userB := sortPair(userID, peerID)
	var contact models.Contact
	err := r.db.GetContext(ctx, &contact, `SELECT `+contactColumns+` FROM contacts WHERE user_a=$1 AND user_b=$2`, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, ErrContactNotFound
	}
	return contact, err
}

// CountActive counts pending and accepted relationships involving the
// user, the number the plan contact cap is checked against.
func (r *ContactRepo) CountActive(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM contacts
        WHERE (user_a=$1 OR user_b=$1) AND status IN ('pending', 'accepted')`, userID)
	return count, err
}

// SetStatus updates the pair status.
func (r *ContactRepo) SetStatus(ctx context.Context, contactID int64, status string) error {
	return r.execOnRow(ctx, `UPDATE contacts SET status=$2, updated_at=NOW() WHERE id=$1`, contactID, status)
}

// Delete removes the relationship row entirely. Rejection is an
// absence, not a state.
func (r *ContactRepo) Delete(ctx context.Context, contactID int64) error {
	return r.execOnRow(ctx, `DELETE FROM contacts WHERE id=$1`, contactID)
}

// SetBlocked sets one side's blocked flag.
func (r *ContactRepo) SetBlocked(ctx context.Context, contactID int64, sideA, blocked bool) error {
	col := sideColumn(sideA, "a_blocked", "b_blocked")
	return r.execOnRow(ctx, fmt.Sprintf(`UPDATE contacts SET %s=$2, updated_at=NOW() WHERE id=$1`, col), contactID, blocked)
}

// SetFavorite sets one side's favorite flag.
func (r *ContactRepo) SetFavorite(ctx context.Context, contactID int64, sideA, favorite bool) error {
	col := sideColumn(sideA, "a_favorite", "b_favorite")
	return r.execOnRow(ctx, fmt.Sprintf(`UPDATE contacts SET %s=$2, updated_at=NOW() WHERE id=$1`, col), contactID, favorite)
}

// ListEdges returns the user's edge views, ordered by creation time.
// Peer snapshot and last-message preview are joined in, own-side
// counters selected by CASE; the caller derives the edge status.
func (r *ContactRepo) ListEdges(ctx context.Context, userID int64, filter string) ([]models.EdgeView, error) {
	query := `SELECT
        CASE WHEN c.user_a=$1 THEN c.user_b ELSE c.user_a END AS peer_id,
        u.email AS peer_email,
        u.display_name AS peer_display_name,
        u.photo_url AS peer_photo_url,
        c.conversation_id,
        conv.last_message,
        conv.last_message_at,
        CASE WHEN c.user_a=$1 THEN c.a_unread ELSE c.b_unread END AS unread_count,
        CASE WHEN c.user_a=$1 THEN c.a_favorite ELSE c.b_favorite END AS is_favorite,
        c.created_at,
        c.status AS pair_status,
        c.requested_by,
        CASE WHEN c.user_a=$1 THEN c.a_blocked ELSE c.b_blocked END AS own_blocked
    FROM contacts c
    JOIN users u ON u.id = CASE WHEN c.user_a=$1 THEN c.user_b ELSE c.user_a END
    JOIN conversations conv ON conv.id = c.conversation_id
    WHERE (c.user_a=$1 OR c.user_b=$1)`

	switch filter {
	case FilterAccepted:
		query += ` AND c.status='accepted'
            AND NOT (CASE WHEN c.user_a=$1 THEN c.a_blocked ELSE c.b_blocked END)`
	case FilterReceived:
		query += ` AND c.status='pending' AND c.requested_by<>$1
            AND NOT (CASE WHEN c.user_a=$1 THEN c.a_blocked ELSE c.b_blocked END)`
	case FilterPending:
		query += ` AND c.status='pending' AND c.requested_by=$1
            AND NOT (CASE WHEN c.user_a=$1 THEN c.a_blocked ELSE c.b_blocked END)`
	case FilterBlocked:
		query += ` AND (CASE WHEN c.user_a=$1 THEN c.a_blocked ELSE c.b_blocked END)`
	case FilterFavorites:
		query += ` AND c.status='accepted'
            AND (CASE WHEN c.user_a=$1 THEN c.a_favorite ELSE c.b_favorite END)
            AND NOT (CASE WHEN c.user_a=$1 THEN c.a_blocked ELSE c.b_blocked END)`
	}
	query += ` ORDER BY c.created_at ASC`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.EdgeView
	for rows.Next() {
		var view models.EdgeView
		if err := rows.StructScan(&view); err != nil {
			return nil, err
		}
		view.DeriveStatus(userID)
		result = append(result, view)
	}
	return result, rows.Err()
}

// TotalUnread sums the user's unread counters across all edges.
func (r *ContactRepo) TotalUnread(ctx context.Context, userID int64) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(
        CASE WHEN user_a=$1 THEN a_unread ELSE b_unread END), 0)
        FROM contacts WHERE user_a=$1 OR user_b=$1`, userID)
	return total, err
}

// AcceptedPeerIDs returns peers with an accepted, mutually unblocked
// relationship with the user. Used for presence fan-out.
func (r *ContactRepo) AcceptedPeerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var peers []int64
	err := r.db.SelectContext(ctx, &peers, `SELECT
        CASE WHEN user_a=$1 THEN user_b ELSE user_a END
        FROM contacts
        WHERE (user_a=$1 OR user_b=$1) AND status='accepted'
        AND NOT a_blocked AND NOT b_blocked`, userID)
	return peers, err
}

func (r *ContactRepo) execOnRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrContactNotFound
	}
	return nil
}

func sideColumn(sideA bool, aCol, bCol string) string {
	if sideA {
		return aCol
	}
	return bCol
}
