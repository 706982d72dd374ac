package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clipshelf/server/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateToken  = errors.New("session token already exists")
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	ByToken(ctx context.Context, token string) (*model.Session, error)
	ByRefreshToken(ctx context.Context, refreshToken string) (*model.Session, error)
	Rotate(ctx context.Context, oldRefreshToken string, next *model.Session, now time.Time) (*model.Session, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db Querier
}

func NewSessionRepository(db Querier) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token, refresh_token, expires_at, refresh_expires_at, ip_address, device_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.ExpiresAt,
		session.RefreshExpiresAt,
		session.IPAddress,
		session.DeviceInfo,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if _, ok := uniqueViolation(err); ok {
		return ErrDuplicateToken
	}
	return err
}

func (r *sessionRepository) ByToken(ctx context.Context, token string) (*model.Session, error) {
	return r.getOne(ctx, `SELECT * FROM sessions WHERE token = $1`, token)
}

func (r *sessionRepository) ByRefreshToken(ctx context.Context, refreshToken string) (*model.Session, error) {
	return r.getOne(ctx, `SELECT * FROM sessions WHERE refresh_token = $1`, refreshToken)
}

func (r *sessionRepository) getOne(ctx context.Context, query string, arg any) (*model.Session, error) {
	var s model.Session
	err := r.db.GetContext(ctx, &s, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Rotate atomically replaces the token pair of the session holding
// oldRefreshToken, provided that refresh token is still current and not
// expired. Of two concurrent rotations with the same old token only one
// matches; the other gets ErrSessionNotFound.
func (r *sessionRepository) Rotate(ctx context.Context, oldRefreshToken string, next *model.Session, now time.Time) (*model.Session, error) {
	query := `
		UPDATE sessions
		SET token = $1,
		    refresh_token = $2,
		    expires_at = $3,
		    refresh_expires_at = $4,
		    updated_at = $5
		WHERE refresh_token = $6
		AND refresh_expires_at > $5
		RETURNING *
	`

	var s model.Session
	err := r.db.GetContext(ctx, &s, query,
		next.Token,
		next.RefreshToken,
		next.ExpiresAt,
		next.RefreshExpiresAt,
		now,
		oldRefreshToken,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if _, ok := uniqueViolation(err); ok {
		return nil, ErrDuplicateToken
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) DeleteByToken(ctx context.Context, token string) error {
	return execOne(ctx, r.db, ErrSessionNotFound, `DELETE FROM sessions WHERE token = $1`, token)
}

func (r *sessionRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return execCount(ctx, r.db, `DELETE FROM sessions WHERE user_id = $1`, userID)
}

// DeleteExpired removes sessions whose refresh token has expired; such
// sessions can never be used again.
func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return execCount(ctx, r.db, `DELETE FROM sessions WHERE refresh_expires_at < $1`, now)
}
