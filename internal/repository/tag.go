package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clipshelf/server/internal/model"
)

var ErrTagNotFound = errors.New("tag not found")

type TagRepository interface {
	Increment(ctx context.Context, id, userID int64, name string, at time.Time) error
	Decrement(ctx context.Context, userID int64, name string, at time.Time) error
	ResetByUser(ctx context.Context, userID int64, at time.Time) (int64, error)
	ByName(ctx context.Context, userID int64, name string) (*model.Tag, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Tag, error)
	DeleteUnused(ctx context.Context) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

type tagRepository struct {
	db Querier
}

func NewTagRepository(db Querier) TagRepository {
	return &tagRepository{db: db}
}

// Increment gets-or-creates the (user, name) tag and adds one use. id is
// only used when the row is created.
func (r *tagRepository) Increment(ctx context.Context, id, userID int64, name string, at time.Time) error {
	query := `
		INSERT INTO tags (id, name, user_id, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (user_id, name)
		DO UPDATE SET usage_count = tags.usage_count + 1, updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, id, name, userID, at)
	return err
}

// Decrement removes one use, flooring at zero. A missing tag is not an
// error.
func (r *tagRepository) Decrement(ctx context.Context, userID int64, name string, at time.Time) error {
	query := `
		UPDATE tags
		SET usage_count = CASE WHEN usage_count > 0 THEN usage_count - 1 ELSE 0 END,
		    updated_at = $1
		WHERE user_id = $2
		AND name = $3
	`
	_, err := r.db.ExecContext(ctx, query, at, userID, name)
	return err
}

func (r *tagRepository) ResetByUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	query := `UPDATE tags SET usage_count = 0, updated_at = $1 WHERE user_id = $2 AND usage_count > 0`
	return execCount(ctx, r.db, query, at, userID)
}

func (r *tagRepository) ByName(ctx context.Context, userID int64, name string) (*model.Tag, error) {
	tag := &model.Tag{}
	err := r.db.GetContext(ctx, tag, `SELECT * FROM tags WHERE user_id = $1 AND name = $2`, userID, name)
	if err == sql.ErrNoRows {
		return nil, ErrTagNotFound
	}
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// ListByUser returns tags in use, most used first.
func (r *tagRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Tag, error) {
	tags := []*model.Tag{}
	query := `
		SELECT * FROM tags
		WHERE user_id = $1 AND usage_count > 0
		ORDER BY usage_count DESC, name ASC
	`
	err := r.db.SelectContext(ctx, &tags, query, userID)
	return tags, err
}

func (r *tagRepository) DeleteUnused(ctx context.Context) (int64, error) {
	return execCount(ctx, r.db, `DELETE FROM tags WHERE usage_count = 0`)
}

func (r *tagRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return execCount(ctx, r.db, `DELETE FROM tags WHERE user_id = $1`, userID)
}
