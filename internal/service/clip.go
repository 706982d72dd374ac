package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/clipshelf/server/internal/crypto"
	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/markdown"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/repository"
	"github.com/clipshelf/server/internal/storage"
	"github.com/clipshelf/server/internal/telemetry"
	"github.com/clipshelf/server/internal/validation"
)

const (
	ShortURLLength   = 6
	shortURLAttempts = 5

	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	ErrClipNotMarkdown = fmt.Errorf("%w: only unencrypted markdown clips can be rendered", ErrValidation)
)

type CreateClipInput struct {
	Title         *string           `json:"title"`
	Content       string            `json:"content"`
	ContentType   model.ContentType `json:"content_type"`
	AccessType    model.AccessType  `json:"access_type"`
	TTL           int64             `json:"ttl"` // seconds, 0 = never expires
	IsEncrypted   bool              `json:"is_encrypted"`
	EncryptionKey *string           `json:"encryption_key"`
	Tags          []string          `json:"tags"`
}

// UpdateClipInput changes only the fields that are set. TTL 0 clears the
// expiry; Tags replaces the whole tag set.
type UpdateClipInput struct {
	Title         *string            `json:"title"`
	Content       *string            `json:"content"`
	ContentType   *model.ContentType `json:"content_type"`
	AccessType    *model.AccessType  `json:"access_type"`
	TTL           *int64             `json:"ttl"`
	IsEncrypted   *bool              `json:"is_encrypted"`
	EncryptionKey *string            `json:"encryption_key"`
	Tags          *[]string          `json:"tags"`
}

type ClipPage struct {
	Items    []*model.Clip `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// RenderedClip is a markdown clip converted to HTML, with its front matter.
type RenderedClip struct {
	Clip *model.Clip     `json:"clip"`
	HTML string          `json:"html"`
	Meta map[string]any `json:"meta,omitempty"`
}

type ClipService struct {
	store           *repository.Store
	ids             *idgen.Generator
	tags            *TagService
	recorder        *Recorder
	cipher          *crypto.KeyCipher
	renderer        *markdown.Renderer
	archive         storage.Storage
	maxContentBytes int
	shortCode       func(n int) (string, error)
	now             Clock
}

// NewClipService wires the clip store. archive may be nil, in which case
// reaped clips are deleted without being archived.
func NewClipService(
	store *repository.Store,
	ids *idgen.Generator,
	tags *TagService,
	recorder *Recorder,
	cipher *crypto.KeyCipher,
	renderer *markdown.Renderer,
	archive storage.Storage,
	maxContentBytes int,
) *ClipService {
	return &ClipService{
		store:           store,
		ids:             ids,
		tags:            tags,
		recorder:        recorder,
		cipher:          cipher,
		renderer:        renderer,
		archive:         archive,
		maxContentBytes: maxContentBytes,
		shortCode:       idgen.ShortCode,
		now:             systemClock,
	}
}

func (s *ClipService) Create(ctx context.Context, ownerID int64, in CreateClipInput) (*model.Clip, error) {
	if in.ContentType == "" {
		in.ContentType = model.ContentTypeText
	}
	if in.AccessType == "" {
		in.AccessType = model.AccessTypePrivate
	}
	if in.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative", ErrValidation)
	}

	clip := &model.Clip{
		UserID:      ownerID,
		Title:       in.Title,
		Content:     in.Content,
		ContentType: in.ContentType,
		AccessType:  in.AccessType,
		IsEncrypted: in.IsEncrypted,
	}
	err := s.validate(clip, in.EncryptionKey)
	if err != nil {
		return nil, err
	}

	tags, err := NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	clip.Tags = mergeTags(tags, s.frontMatterTags(clip))

	plainKey := in.EncryptionKey
	if clip.IsEncrypted {
		wrapped, err := s.cipher.Seal(*in.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap encryption key: %w", err)
		}
		clip.EncryptionKey = &wrapped
	}

	attempt := 0
	err = retry(ctx, shortURLAttempts, func() error {
		attempt++
		shortURL, err := s.shortCode(ShortURLLength)
		if err != nil {
			return fmt.Errorf("failed to generate short url: %w", err)
		}

		now := s.now()
		clip.ID = s.ids.NextID()
		clip.ShortURL = shortURL
		clip.CreatedAt = now
		clip.UpdatedAt = now
		clip.ExpiresAt = nil
		if in.TTL > 0 {
			expiresAt := now.Add(time.Duration(in.TTL) * time.Second)
			clip.ExpiresAt = &expiresAt
		}

		err = s.store.InTx(ctx, func(tx *repository.Store) error {
			err := tx.Clips.Create(ctx, clip)
			if err != nil {
				return err
			}
			return s.tags.incrementTx(ctx, tx, ownerID, clip.Tags, now)
		})
		if err != nil && retryable(err) {
			slog.Warn("clip insert collided", "short_url", shortURL, "attempt", attempt)
		}
		return err
	})
	if errors.Is(err, ErrTransient) {
		return nil, fmt.Errorf("could not allocate a unique short url: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create clip: %w", err)
	}

	slog.Info("clip created", "clip_id", clip.ID, "user_id", ownerID, "short_url", clip.ShortURL)
	created := *clip
	created.EncryptionKey = plainKey
	if !created.IsEncrypted {
		created.EncryptionKey = nil
	}
	return &created, nil
}

// Get returns a readable clip by id or short url and counts the read.
// Expiry is checked before access type, so an expired clip is reported as
// expired to everyone.
func (s *ClipService) Get(ctx context.Context, ref string, requester *int64, meta AccessMeta) (*model.Clip, error) {
	clip, err := s.readable(ctx, ref, requester)
	if err != nil {
		return nil, err
	}

	err = s.countView(ctx, clip, requester, meta)
	if err != nil {
		return nil, err
	}
	return s.present(clip, requester), nil
}

// Resolve is Get restricted to short urls, for the public /s/ links.
func (s *ClipService) Resolve(ctx context.Context, shortURL string, requester *int64, meta AccessMeta) (*model.Clip, error) {
	if !idgen.IsShortCode(shortURL, ShortURLLength) {
		return nil, ErrNotFound
	}
	return s.Get(ctx, shortURL, requester, meta)
}

// Render converts a markdown clip to HTML. It counts as a read.
func (s *ClipService) Render(ctx context.Context, ref string, requester *int64, meta AccessMeta) (*RenderedClip, error) {
	clip, err := s.readable(ctx, ref, requester)
	if err != nil {
		return nil, err
	}
	if clip.ContentType != model.ContentTypeMarkdown || clip.IsEncrypted {
		return nil, ErrClipNotMarkdown
	}

	html, frontMatter, err := s.renderer.RenderWithMeta([]byte(clip.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	err = s.countView(ctx, clip, requester, meta)
	if err != nil {
		return nil, err
	}
	return &RenderedClip{Clip: s.present(clip, requester), HTML: string(html), Meta: frontMatter}, nil
}

// ListOwn pages through the owner's clips, including private, unlisted and
// expired ones.
func (s *ClipService) ListOwn(ctx context.Context, ownerID int64, page, pageSize int) (*ClipPage, error) {
	err := validatePage(page, pageSize)
	if err != nil {
		return nil, err
	}

	clips, err := s.store.Clips.ListByUser(ctx, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	total, err := s.store.Clips.CountByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count clips: %w", err)
	}

	for i, clip := range clips {
		clips[i] = s.present(clip, &ownerID)
	}
	return &ClipPage{Items: clips, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListPublic pages through live, unexpired public clips. Unlisted clips
// never appear here.
func (s *ClipService) ListPublic(ctx context.Context, page, pageSize int) (*ClipPage, error) {
	err := validatePage(page, pageSize)
	if err != nil {
		return nil, err
	}

	now := s.now()
	clips, err := s.store.Clips.ListPublic(ctx, now, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list public clips: %w", err)
	}
	total, err := s.store.Clips.CountPublic(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count public clips: %w", err)
	}

	for i, clip := range clips {
		clips[i] = s.present(clip, nil)
	}
	return &ClipPage{Items: clips, Total: total, Page: page, PageSize: pageSize}, nil
}

// Update changes an owned clip. The short url and view count never change.
func (s *ClipService) Update(ctx context.Context, ownerID, clipID int64, in UpdateClipInput) (*model.Clip, error) {
	if in.TTL != nil && *in.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative", ErrValidation)
	}

	var requested []string
	if in.Tags != nil {
		var err error
		requested, err = NormalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
	}

	var updated *model.Clip
	err := retry(ctx, 3, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			clip, err := ownedClip(ctx, tx, ownerID, clipID)
			if err != nil {
				return err
			}

			previous := s.frontMatterTags(clip)
			err = s.apply(clip, in)
			if err != nil {
				return err
			}

			clip.UpdatedAt = s.now()
			err = tx.Clips.Update(ctx, clip)
			if errors.Is(err, repository.ErrClipNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to update clip: %w", err)
			}

			next := clip.Tags
			if in.Tags != nil {
				next = requested
			}
			if in.Content != nil {
				current := s.frontMatterTags(clip)
				if in.Tags == nil {
					// Tags that only came from the old front matter go with it.
					next = withoutTags(next, previous, current)
				}
				next = mergeTags(next, current)
			}
			err = s.tags.setTx(ctx, tx, clip, next)
			if err != nil {
				return err
			}

			updated = clip
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.present(updated, &ownerID), nil
}

// Delete soft-deletes an owned clip and releases its tags in the same
// transaction.
func (s *ClipService) Delete(ctx context.Context, ownerID, clipID int64) error {
	err := retry(ctx, 3, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			clip, err := ownedClip(ctx, tx, ownerID, clipID)
			if err != nil {
				return err
			}

			now := s.now()
			err = s.tags.decrementTx(ctx, tx, ownerID, clip.Tags, now)
			if err != nil {
				return err
			}
			return tx.Clips.SoftDelete(ctx, clip.ID, clip.Tags, now)
		})
	})
	if err != nil {
		return err
	}

	slog.Info("clip deleted", "clip_id", clipID, "user_id", ownerID)
	return nil
}

// ReapExpired archives and hard-deletes up to limit clips that expired
// before cutoff. It returns how many were removed.
func (s *ClipService) ReapExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	clips, err := s.store.Clips.ExpiredBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired clips: %w", err)
	}

	removed := 0
	for _, clip := range clips {
		err := s.archiveClip(ctx, clip)
		if err != nil {
			slog.Error("failed to archive clip, keeping it", "error", err, "clip_id", clip.ID)
			continue
		}

		deleted := false
		err = retry(ctx, 3, func() error {
			deleted = false
			return s.store.InTx(ctx, func(tx *repository.Store) error {
				current, err := tx.Clips.ByID(ctx, clip.ID)
				if errors.Is(err, repository.ErrClipNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				if current.ExpiresAt == nil || !current.ExpiresAt.Before(cutoff) {
					// Owner extended the expiry since the listing.
					return nil
				}

				err = s.tags.decrementTx(ctx, tx, current.UserID, current.Tags, s.now())
				if err != nil {
					return err
				}
				_, err = tx.AccessLogs.DeleteByContent(ctx, current.ID)
				if err != nil {
					return fmt.Errorf("failed to delete access logs: %w", err)
				}
				err = tx.Clips.HardDeleteExpired(ctx, current.ID, current.Tags, cutoff)
				if err != nil {
					return err
				}
				deleted = true
				return nil
			})
		})
		if err != nil {
			slog.Error("failed to reap expired clip", "error", err, "clip_id", clip.ID)
			continue
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// PurgeDeleted hard-deletes up to limit clips soft-deleted before cutoff.
// Their tags were already released when they were deleted.
func (s *ClipService) PurgeDeleted(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	clips, err := s.store.Clips.DeletedBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list deleted clips: %w", err)
	}

	removed := 0
	for _, clip := range clips {
		err := s.store.InTx(ctx, func(tx *repository.Store) error {
			return s.hardDeleteTx(ctx, tx, clip)
		})
		if err != nil {
			slog.Error("failed to purge deleted clip", "error", err, "clip_id", clip.ID)
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *ClipService) hardDeleteTx(ctx context.Context, tx *repository.Store, clip *model.Clip) error {
	_, err := tx.AccessLogs.DeleteByContent(ctx, clip.ID)
	if err != nil {
		return fmt.Errorf("failed to delete access logs: %w", err)
	}
	return tx.Clips.HardDelete(ctx, clip.ID, clip.Tags)
}

// ArchivePath is where a reaped clip is stored in the archive bucket.
func ArchivePath(clip *model.Clip) string {
	return fmt.Sprintf("clips/%d/%s.json", clip.UserID, clip.ShortURL)
}

func (s *ClipService) archiveClip(ctx context.Context, clip *model.Clip) error {
	if s.archive == nil {
		return nil
	}

	body, err := json.Marshal(clip)
	if err != nil {
		return err
	}
	return s.archive.Save(ctx, ArchivePath(clip), bytes.NewReader(body))
}

// lookup resolves ref, a decimal id or a short url, to a live clip.
func (s *ClipService) lookup(ctx context.Context, ref string) (*model.Clip, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		clip, err := s.store.Clips.ByID(ctx, id)
		if err == nil {
			return clip, nil
		}
		if !errors.Is(err, repository.ErrClipNotFound) {
			return nil, fmt.Errorf("failed to get clip: %w", err)
		}
	}

	if !idgen.IsShortCode(ref, ShortURLLength) {
		return nil, ErrNotFound
	}

	clip, err := s.store.Clips.ByShortURL(ctx, ref)
	if errors.Is(err, repository.ErrClipNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clip: %w", err)
	}
	return clip, nil
}

// readable looks up ref and applies the expiry and visibility rules.
func (s *ClipService) readable(ctx context.Context, ref string, requester *int64) (*model.Clip, error) {
	clip, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	if clip.IsExpired(s.now()) {
		return nil, ErrExpired
	}
	if clip.AccessType == model.AccessTypePrivate && !clip.IsOwnedBy(requester) {
		return nil, ErrForbidden
	}
	return clip, nil
}

// countView increments the view counter and appends one access log entry.
func (s *ClipService) countView(ctx context.Context, clip *model.Clip, requester *int64, meta AccessMeta) error {
	views, err := s.store.Clips.IncrementViews(ctx, clip.ID)
	if errors.Is(err, repository.ErrClipNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to count view: %w", err)
	}
	clip.ViewCount = views

	telemetry.ClipViewsTotal.WithLabelValues(string(clip.AccessType)).Inc()
	s.recorder.Record(ctx, clip.ID, requester, meta)
	return nil
}

// present returns a copy of clip safe to show to requester: the encryption
// key is unwrapped for the owner and removed for everyone else.
func (s *ClipService) present(clip *model.Clip, requester *int64) *model.Clip {
	out := *clip
	out.EncryptionKey = nil
	if !clip.IsEncrypted || clip.EncryptionKey == nil || !clip.IsOwnedBy(requester) {
		return &out
	}

	key, err := s.cipher.Open(*clip.EncryptionKey)
	if err != nil {
		slog.Error("failed to unwrap encryption key", "error", err, "clip_id", clip.ID)
		return &out
	}
	out.EncryptionKey = &key
	return &out
}

// apply copies the set fields of in onto clip and validates the result.
// A new encryption key is wrapped before it is stored.
func (s *ClipService) apply(clip *model.Clip, in UpdateClipInput) error {
	if in.Title != nil {
		clip.Title = in.Title
	}
	if in.Content != nil {
		clip.Content = *in.Content
	}
	if in.ContentType != nil {
		clip.ContentType = *in.ContentType
	}
	if in.AccessType != nil {
		clip.AccessType = *in.AccessType
	}
	if in.TTL != nil {
		clip.ExpiresAt = nil
		if *in.TTL > 0 {
			expiresAt := s.now().Add(time.Duration(*in.TTL) * time.Second)
			clip.ExpiresAt = &expiresAt
		}
	}
	if in.IsEncrypted != nil {
		clip.IsEncrypted = *in.IsEncrypted
	}

	key := in.EncryptionKey
	if key == nil && clip.IsEncrypted && clip.EncryptionKey != nil {
		// The stored key stays; it is wrapped, so it stands in for the
		// plaintext during validation.
		key = clip.EncryptionKey
	}
	err := s.validate(clip, key)
	if err != nil {
		return err
	}

	if !clip.IsEncrypted {
		clip.EncryptionKey = nil
		return nil
	}
	if in.EncryptionKey == nil {
		return nil
	}

	wrapped, err := s.cipher.Seal(*in.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to wrap encryption key: %w", err)
	}
	clip.EncryptionKey = &wrapped
	return nil
}

// validate checks clip fields. key is the plaintext key that will be
// stored with the clip, if any.
func (s *ClipService) validate(clip *model.Clip, key *string) error {
	if !clip.ContentType.Valid() {
		return fmt.Errorf("%w: unknown content_type %q", ErrValidation, clip.ContentType)
	}
	if !clip.AccessType.Valid() {
		return fmt.Errorf("%w: unknown access_type %q", ErrValidation, clip.AccessType)
	}
	if clip.Title != nil {
		err := validation.ValidateTitle(*clip.Title)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	err := validation.ValidateContent(clip.Content, s.maxContentBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if clip.IsEncrypted {
		if key == nil || *key == "" {
			return fmt.Errorf("%w: encrypted clips require an encryption_key", ErrValidation)
		}
		return nil
	}
	if key != nil && *key != "" {
		return fmt.Errorf("%w: encryption_key is only allowed on encrypted clips", ErrValidation)
	}

	if clip.ContentType == model.ContentTypeURL {
		err := validation.ValidateURL(clip.Content)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// frontMatterTags returns the valid tag names listed in a markdown clip's
// front matter. Entries that are not valid tag names are skipped.
func (s *ClipService) frontMatterTags(clip *model.Clip) []string {
	if clip.ContentType != model.ContentTypeMarkdown || clip.IsEncrypted {
		return nil
	}

	var out []string
	for _, raw := range s.renderer.Tags([]byte(clip.Content)) {
		name, err := NormalizeTag(raw)
		if err != nil {
			slog.Debug("skipping front matter tag", "tag", raw, "error", err)
			continue
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// withoutTags drops from tags the names in removed that are not in kept.
func withoutTags(tags model.TagList, removed, kept []string) model.TagList {
	out := model.TagList{}
	for _, name := range tags {
		if slices.Contains(removed, name) && !slices.Contains(kept, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func validatePage(page, pageSize int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be at least 1", ErrValidation)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return fmt.Errorf("%w: page_size must be between 1 and %d", ErrValidation, MaxPageSize)
	}
	return nil
}

func mergeTags(base, extra []string) model.TagList {
	out := append(model.TagList{}, base...)
	for _, name := range extra {
		if !out.Contains(name) {
			out = append(out, name)
		}
	}
	return out
}
