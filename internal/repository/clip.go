package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clipshelf/server/internal/model"
)

var (
	ErrClipNotFound      = errors.New("clip not found")
	ErrDuplicateShortURL = errors.New("short url already exists")
)

type ClipRepository interface {
	Create(ctx context.Context, clip *model.Clip) error
	ByID(ctx context.Context, id int64) (*model.Clip, error)
	ByShortURL(ctx context.Context, shortURL string) (*model.Clip, error)
	IncrementViews(ctx context.Context, id int64) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Clip, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	ListPublic(ctx context.Context, now time.Time, limit, offset int) ([]*model.Clip, error)
	CountPublic(ctx context.Context, now time.Time) (int64, error)
	Update(ctx context.Context, clip *model.Clip) error
	SwapTags(ctx context.Context, id int64, old, next model.TagList, at time.Time) error
	SoftDelete(ctx context.Context, id int64, tags model.TagList, at time.Time) error
	SoftDeleteByUser(ctx context.Context, userID int64, at time.Time) (int64, error)
	ExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Clip, error)
	DeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Clip, error)
	HardDelete(ctx context.Context, id int64, tags model.TagList) error
	HardDeleteExpired(ctx context.Context, id int64, tags model.TagList, cutoff time.Time) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

type clipRepository struct {
	db Querier
}

func NewClipRepository(db Querier) ClipRepository {
	return &clipRepository{db: db}
}

func (r *clipRepository) Create(ctx context.Context, clip *model.Clip) error {
	query := `
		INSERT INTO clip_contents (id, user_id, title, content, content_type, is_encrypted, encryption_key,
			access_type, expires_at, short_url, tags, view_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		clip.ID,
		clip.UserID,
		clip.Title,
		clip.Content,
		clip.ContentType,
		clip.IsEncrypted,
		clip.EncryptionKey,
		clip.AccessType,
		clip.ExpiresAt,
		clip.ShortURL,
		clip.Tags,
		clip.ViewCount,
		clip.CreatedAt,
		clip.UpdatedAt,
	)
	if _, ok := uniqueViolation(err); ok {
		return ErrDuplicateShortURL
	}
	return err
}

// ByID returns a live (not soft-deleted) clip. Expiry is not checked here.
func (r *clipRepository) ByID(ctx context.Context, id int64) (*model.Clip, error) {
	return r.getOne(ctx, `SELECT * FROM clip_contents WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *clipRepository) ByShortURL(ctx context.Context, shortURL string) (*model.Clip, error) {
	return r.getOne(ctx, `SELECT * FROM clip_contents WHERE short_url = $1 AND deleted_at IS NULL`, shortURL)
}

func (r *clipRepository) getOne(ctx context.Context, query string, arg any) (*model.Clip, error) {
	clip := &model.Clip{}
	err := r.db.GetContext(ctx, clip, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, err
	}
	return clip, nil
}

// IncrementViews adds one view in a single statement and returns the new
// count, so concurrent readers never lose an update.
func (r *clipRepository) IncrementViews(ctx context.Context, id int64) (int64, error) {
	var count int64
	query := `
		UPDATE clip_contents
		SET view_count = view_count + 1
		WHERE id = $1
		AND deleted_at IS NULL
		RETURNING view_count
	`
	err := r.db.GetContext(ctx, &count, query, id)
	if err == sql.ErrNoRows {
		return 0, ErrClipNotFound
	}
	return count, err
}

func (r *clipRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Clip, error) {
	clips := []*model.Clip{}
	query := `
		SELECT * FROM clip_contents
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &clips, query, userID, limit, offset)
	return clips, err
}

func (r *clipRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM clip_contents WHERE user_id = $1 AND deleted_at IS NULL`, userID)
	return count, err
}

// ListPublic returns live, unexpired public clips. Unlisted clips are never
// listed.
func (r *clipRepository) ListPublic(ctx context.Context, now time.Time, limit, offset int) ([]*model.Clip, error) {
	clips := []*model.Clip{}
	query := `
		SELECT * FROM clip_contents
		WHERE access_type = 'public'
		AND deleted_at IS NULL
		AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &clips, query, now, limit, offset)
	return clips, err
}

func (r *clipRepository) CountPublic(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM clip_contents
		WHERE access_type = 'public'
		AND deleted_at IS NULL
		AND (expires_at IS NULL OR expires_at > $1)
	`
	err := r.db.GetContext(ctx, &count, query, now)
	return count, err
}

// Update writes the mutable fields of clip. short_url, tags and view_count
// are never touched here.
func (r *clipRepository) Update(ctx context.Context, clip *model.Clip) error {
	query := `
		UPDATE clip_contents
		SET title = $1,
		    content = $2,
		    content_type = $3,
		    is_encrypted = $4,
		    encryption_key = $5,
		    access_type = $6,
		    expires_at = $7,
		    updated_at = $8
		WHERE id = $9
		AND user_id = $10
		AND deleted_at IS NULL
	`
	return execOne(ctx, r.db, ErrClipNotFound, query,
		clip.Title,
		clip.Content,
		clip.ContentType,
		clip.IsEncrypted,
		clip.EncryptionKey,
		clip.AccessType,
		clip.ExpiresAt,
		clip.UpdatedAt,
		clip.ID,
		clip.UserID,
	)
}

// SwapTags replaces the tag set only if it still equals old.
func (r *clipRepository) SwapTags(ctx context.Context, id int64, old, next model.TagList, at time.Time) error {
	query := `
		UPDATE clip_contents
		SET tags = $1, updated_at = $2
		WHERE id = $3
		AND tags = $4
		AND deleted_at IS NULL
	`
	return execOne(ctx, r.db, ErrConflict, query, next, at, id, old)
}

// SoftDelete marks the clip deleted, provided its tag set still equals tags
// so the caller's tag bookkeeping matches what was removed.
func (r *clipRepository) SoftDelete(ctx context.Context, id int64, tags model.TagList, at time.Time) error {
	query := `
		UPDATE clip_contents
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2
		AND tags = $3
		AND deleted_at IS NULL
	`
	return execOne(ctx, r.db, ErrConflict, query, at, id, tags)
}

func (r *clipRepository) SoftDeleteByUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	query := `UPDATE clip_contents SET deleted_at = $1, updated_at = $1 WHERE user_id = $2 AND deleted_at IS NULL`
	return execCount(ctx, r.db, query, at, userID)
}

// ExpiredBefore lists live clips whose expires_at is before cutoff.
func (r *clipRepository) ExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Clip, error) {
	clips := []*model.Clip{}
	query := `
		SELECT * FROM clip_contents
		WHERE deleted_at IS NULL
		AND expires_at IS NOT NULL
		AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &clips, query, cutoff, limit)
	return clips, err
}

// DeletedBefore lists clips soft-deleted before cutoff.
func (r *clipRepository) DeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Clip, error) {
	clips := []*model.Clip{}
	query := `
		SELECT * FROM clip_contents
		WHERE deleted_at IS NOT NULL
		AND deleted_at < $1
		ORDER BY deleted_at
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &clips, query, cutoff, limit)
	return clips, err
}

// HardDelete physically removes the clip if its tag set still equals tags.
// Access logs must be removed first.
func (r *clipRepository) HardDelete(ctx context.Context, id int64, tags model.TagList) error {
	return execOne(ctx, r.db, ErrConflict, `DELETE FROM clip_contents WHERE id = $1 AND tags = $2`, id, tags)
}

// HardDeleteExpired is HardDelete that also requires the clip to still be
// expired at cutoff, so an expiry extended after the listing keeps the clip.
func (r *clipRepository) HardDeleteExpired(ctx context.Context, id int64, tags model.TagList, cutoff time.Time) error {
	query := `
		DELETE FROM clip_contents
		WHERE id = $1 AND tags = $2
		AND expires_at IS NOT NULL
		AND expires_at < $3
	`
	return execOne(ctx, r.db, ErrConflict, query, id, tags, cutoff)
}

func (r *clipRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return execCount(ctx, r.db, `DELETE FROM clip_contents WHERE user_id = $1`, userID)
}
