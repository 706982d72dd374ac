package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/repository"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const MaxTagLength = 32

var tagFolder = cases.Lower(language.Und)

// NormalizeTag returns the canonical form of a tag name: trimmed, NFC and
// lower-cased. Names must be 1-32 characters without commas or control
// characters.
func NormalizeTag(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	name = tagFolder.String(name)

	n := utf8.RuneCountInString(name)
	if n == 0 {
		return "", fmt.Errorf("%w: tag name is required", ErrValidation)
	}
	if n > MaxTagLength {
		return "", fmt.Errorf("%w: tag %q is too long (max %d characters)", ErrValidation, name, MaxTagLength)
	}
	for _, r := range name {
		if r == ',' || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: tag %q contains an invalid character", ErrValidation, name)
		}
	}
	return name, nil
}

// NormalizeTags normalises names and drops duplicates, keeping first
// occurrence order.
func NormalizeTags(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name, err := NormalizeTag(raw)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// TagService keeps per-user tag counters in step with the tag sets of live
// clips. The clip's tags column is the membership record and is changed by
// compare-and-swap, so concurrent attach and detach calls cannot double
// count.
type TagService struct {
	store *repository.Store
	ids   *idgen.Generator
	now   Clock
}

func NewTagService(store *repository.Store, ids *idgen.Generator) *TagService {
	return &TagService{
		store: store,
		ids:   ids,
		now:   systemClock,
	}
}

// Attach adds names to the owner's clip. Names already on the clip are
// ignored.
func (s *TagService) Attach(ctx context.Context, userID, clipID int64, names []string) (*model.Clip, error) {
	names, err := NormalizeTags(names)
	if err != nil {
		return nil, err
	}

	return s.modify(ctx, userID, clipID, func(tx *repository.Store, clip *model.Clip) error {
		return s.attachTx(ctx, tx, clip, names)
	})
}

// Detach removes names from the owner's clip. Names not on the clip are
// ignored.
func (s *TagService) Detach(ctx context.Context, userID, clipID int64, names []string) (*model.Clip, error) {
	names, err := NormalizeTags(names)
	if err != nil {
		return nil, err
	}

	return s.modify(ctx, userID, clipID, func(tx *repository.Store, clip *model.Clip) error {
		return s.detachTx(ctx, tx, clip, names)
	})
}

func (s *TagService) modify(ctx context.Context, userID, clipID int64, fn func(tx *repository.Store, clip *model.Clip) error) (*model.Clip, error) {
	var clip *model.Clip
	err := retry(ctx, 3, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			var err error
			clip, err = ownedClip(ctx, tx, userID, clipID)
			if err != nil {
				return err
			}
			return fn(tx, clip)
		})
	})
	if err != nil {
		return nil, err
	}
	return clip, nil
}

// ListByUser returns the user's tags in use, most used first.
func (s *TagService) ListByUser(ctx context.Context, userID int64) ([]*model.Tag, error) {
	tags, err := s.store.Tags.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// Prune deletes tags no live clip uses.
func (s *TagService) Prune(ctx context.Context) (int64, error) {
	n, err := s.store.Tags.DeleteUnused(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tags: %w", err)
	}
	return n, nil
}

// attachTx merges names into clip's tag set inside tx.
func (s *TagService) attachTx(ctx context.Context, tx *repository.Store, clip *model.Clip, names []string) error {
	next := append(model.TagList{}, clip.Tags...)
	for _, name := range names {
		if !next.Contains(name) {
			next = append(next, name)
		}
	}
	return s.setTx(ctx, tx, clip, next)
}

// detachTx removes names from clip's tag set inside tx.
func (s *TagService) detachTx(ctx context.Context, tx *repository.Store, clip *model.Clip, names []string) error {
	next := model.TagList{}
	for _, name := range clip.Tags {
		if !model.TagList(names).Contains(name) {
			next = append(next, name)
		}
	}
	return s.setTx(ctx, tx, clip, next)
}

// setTx replaces clip's tag set with next and adjusts counters for the
// difference. A concurrent change to the set surfaces as
// repository.ErrConflict.
func (s *TagService) setTx(ctx context.Context, tx *repository.Store, clip *model.Clip, next model.TagList) error {
	var added, removed []string
	for _, name := range next {
		if !clip.Tags.Contains(name) {
			added = append(added, name)
		}
	}
	for _, name := range clip.Tags {
		if !next.Contains(name) {
			removed = append(removed, name)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	now := s.now()
	err := tx.Clips.SwapTags(ctx, clip.ID, clip.Tags, next, now)
	if err != nil {
		return err
	}

	err = s.incrementTx(ctx, tx, clip.UserID, added, now)
	if err != nil {
		return err
	}
	err = s.decrementTx(ctx, tx, clip.UserID, removed, now)
	if err != nil {
		return err
	}

	clip.Tags = next
	clip.UpdatedAt = now
	return nil
}

func (s *TagService) incrementTx(ctx context.Context, tx *repository.Store, userID int64, names []string, now time.Time) error {
	for _, name := range names {
		err := tx.Tags.Increment(ctx, s.ids.NextID(), userID, name, now)
		if err != nil {
			return fmt.Errorf("failed to increment tag %q: %w", name, err)
		}
	}
	return nil
}

func (s *TagService) decrementTx(ctx context.Context, tx *repository.Store, userID int64, names []string, now time.Time) error {
	for _, name := range names {
		err := tx.Tags.Decrement(ctx, userID, name, now)
		if err != nil {
			return fmt.Errorf("failed to decrement tag %q: %w", name, err)
		}
	}
	return nil
}

// ownedClip loads a live clip for modification by userID.
func ownedClip(ctx context.Context, tx *repository.Store, userID, clipID int64) (*model.Clip, error) {
	clip, err := tx.Clips.ByID(ctx, clipID)
	if errors.Is(err, repository.ErrClipNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clip: %w", err)
	}
	if clip.UserID != userID {
		return nil, ErrForbidden
	}
	return clip, nil
}
