package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"contact-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts user snapshot persistence.
type UserRepository interface {
	UpsertProfile(ctx context.Context, userID int64, email, displayName, photoURL string) (models.User, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	SearchByEmailPrefix(ctx context.Context, prefix string, excludeID int64, limit int) ([]models.User, error)
	GetPlan(ctx context.Context, userID int64) (string, error)
	SetPlan(ctx context.Context, userID int64, plan string) error
	SetOnline(ctx context.Context, userID int64, online bool) error
	GetPresence(ctx context.Context, userID int64) (models.Presence, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, display_name, photo_url, plan, is_online, last_seen, created_at`

// UpsertProfile creates or refreshes the local snapshot for a user,
// keyed by the identity-service user id.
func (r *UserRepo) UpsertProfile(ctx context.Context, userID int64, email, displayName, photoURL string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (id, email, display_name, photo_url)
        VALUES ($1, $2, $3, NULLIF($4, ''))
        ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email,
            display_name = EXCLUDED.display_name,
            photo_url = COALESCE(EXCLUDED.photo_url, users.photo_url)
        RETURNING `+userColumns, userID, email, displayName, photoURL).
		StructScan(&user)
	return user, err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches a user by exact email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SearchByEmailPrefix returns users whose email starts with prefix,
// excluding the caller. Used for recipient autocompletion.
func (r *UserRepo) SearchByEmailPrefix(ctx context.Context, prefix string, excludeID int64, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE email LIKE $1 || '%' AND id <> $2
        ORDER BY email ASC LIMIT $3`, prefix, excludeID, limit)
	return users, err
}

// GetPlan returns the user's subscription tier.
func (r *UserRepo) GetPlan(ctx context.Context, userID int64) (string, error) {
	var plan string
	err := r.db.GetContext(ctx, &plan, `SELECT plan FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return plan, err
}

// SetPlan updates the user's subscription tier.
func (r *UserRepo) SetPlan(ctx context.Context, userID int64, plan string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET plan=$2 WHERE id=$1`, userID, plan)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetOnline flips the online flag; going offline also stamps last_seen.
func (r *UserRepo) SetOnline(ctx context.Context, userID int64, online bool) error {
	if online {
		_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=TRUE WHERE id=$1`, userID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=FALSE, last_seen=NOW() WHERE id=$1`, userID)
	return err
}

// GetPresence returns the online/last-seen view of a user.
func (r *UserRepo) GetPresence(ctx context.Context, userID int64) (models.Presence, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return models.Presence{}, err
	}
	presence := models.Presence{UserID: user.ID, IsOnline: user.IsOnline}
	if user.LastSeen.Valid {
		t := user.LastSeen.Time
		presence.LastSeen = &t
	}
	return presence, nil
}
