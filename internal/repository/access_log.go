package repository

import (
	"context"
	"time"

	"github.com/clipshelf/server/internal/model"
)

// AccessLogRepository is append-only for request paths. The delete and
// detach methods exist only to reproduce the schema's ON DELETE actions
// when clips and users are purged.
type AccessLogRepository interface {
	Create(ctx context.Context, entry *model.AccessLog) error
	ListByContent(ctx context.Context, contentID int64, limit int) ([]*model.AccessLog, error)
	CountByContent(ctx context.Context, contentID int64) (int64, error)
	DeleteByContent(ctx context.Context, contentID int64) (int64, error)
	DeleteByContentOwner(ctx context.Context, userID int64) (int64, error)
	DetachUser(ctx context.Context, userID int64) (int64, error)
}

type accessLogRepository struct {
	db Querier
}

func NewAccessLogRepository(db Querier) AccessLogRepository {
	return &accessLogRepository{db: db}
}

func (r *accessLogRepository) Create(ctx context.Context, entry *model.AccessLog) error {
	if entry.AccessedAt.IsZero() {
		entry.AccessedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO access_logs (id, content_id, user_id, access_ip, user_agent, referer, accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ContentID,
		entry.UserID,
		entry.AccessIP,
		entry.UserAgent,
		entry.Referer,
		entry.AccessedAt,
	)
	return err
}

// ListByContent returns the most recent entries first.
func (r *accessLogRepository) ListByContent(ctx context.Context, contentID int64, limit int) ([]*model.AccessLog, error) {
	entries := []*model.AccessLog{}
	query := `
		SELECT * FROM access_logs
		WHERE content_id = $1
		ORDER BY accessed_at DESC, id DESC
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &entries, query, contentID, limit)
	return entries, err
}

func (r *accessLogRepository) CountByContent(ctx context.Context, contentID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM access_logs WHERE content_id = $1`, contentID)
	return count, err
}

func (r *accessLogRepository) DeleteByContent(ctx context.Context, contentID int64) (int64, error) {
	return execCount(ctx, r.db, `DELETE FROM access_logs WHERE content_id = $1`, contentID)
}

// DeleteByContentOwner removes entries for every clip owned by userID.
func (r *accessLogRepository) DeleteByContentOwner(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM access_logs WHERE content_id IN (SELECT id FROM clip_contents WHERE user_id = $1)`
	return execCount(ctx, r.db, query, userID)
}

// DetachUser clears the viewer reference of entries made by userID, keeping
// the entries themselves.
func (r *accessLogRepository) DetachUser(ctx context.Context, userID int64) (int64, error) {
	return execCount(ctx, r.db, `UPDATE access_logs SET user_id = NULL WHERE user_id = $1`, userID)
}
