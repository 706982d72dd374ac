// Package jobs runs background maintenance for the clip store.
//
// Expiry is enforced lazily on every read, so the reaper only reclaims
// storage: a stopped or failing reaper never changes what callers can see.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clipshelf/server/internal/telemetry"
)

type SessionReaper interface {
	ReapExpired(ctx context.Context, now time.Time) (int64, error)
}

type ClipReaper interface {
	ReapExpired(ctx context.Context, cutoff time.Time, limit int) (int, error)
	PurgeDeleted(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type AccountPurger interface {
	PurgeDeleted(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type TagPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// ReaperConfig controls how often the reaper runs and how long removed rows
// are kept before they are reclaimed.
type ReaperConfig struct {
	Interval      time.Duration // 0 disables the reaper
	Grace         time.Duration // kept past expires_at before hard delete
	ClipRetention time.Duration // kept past deleted_at before hard delete
	UserRetention time.Duration
	Batch         int
}

// Reaper periodically removes expired sessions and clips, purges
// soft-deleted clips and users past their retention window, and prunes
// unused tags.
type Reaper struct {
	sessions SessionReaper
	clips    ClipReaper
	accounts AccountPurger
	tags     TagPruner
	cfg      ReaperConfig
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewReaper(sessions SessionReaper, clips ClipReaper, accounts AccountPurger, tags TagPruner, cfg ReaperConfig) *Reaper {
	if cfg.Batch <= 0 {
		cfg.Batch = 500
	}
	return &Reaper{
		sessions: sessions,
		clips:    clips,
		accounts: accounts,
		tags:     tags,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		stopChan: make(chan struct{}),
	}
}

// Start runs one pass immediately, then repeats on the configured interval
// until ctx is cancelled or Stop is called.
func (r *Reaper) Start(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		slog.Info("reaper disabled")
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.Info("reaper started", "interval", r.cfg.Interval, "batch", r.cfg.Batch)

	r.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopChan:
			slog.Info("reaper stopped")
			return
		case <-ctx.Done():
			slog.Info("reaper context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit. Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

// RunOnce performs a single pass. A failing or panicking step is logged and
// does not prevent the remaining steps from running.
func (r *Reaper) RunOnce(ctx context.Context) {
	now := r.now()

	r.step(ctx, "sessions", func() (int64, error) {
		return r.sessions.ReapExpired(ctx, now)
	})
	r.step(ctx, "expired_clips", func() (int64, error) {
		n, err := r.clips.ReapExpired(ctx, now.Add(-r.cfg.Grace), r.cfg.Batch)
		return int64(n), err
	})
	r.step(ctx, "deleted_clips", func() (int64, error) {
		n, err := r.clips.PurgeDeleted(ctx, now.Add(-r.cfg.ClipRetention), r.cfg.Batch)
		return int64(n), err
	})
	r.step(ctx, "users", func() (int64, error) {
		n, err := r.accounts.PurgeDeleted(ctx, now.Add(-r.cfg.UserRetention), r.cfg.Batch)
		return int64(n), err
	})
	r.step(ctx, "tags", func() (int64, error) {
		return r.tags.Prune(ctx)
	})
}

func (r *Reaper) step(ctx context.Context, kind string, fn func() (int64, error)) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("reaper step panicked", "kind", kind, "panic", p)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	n, err := fn()
	if n > 0 {
		telemetry.ReaperDeletedTotal.WithLabelValues(kind).Add(float64(n))
		slog.Info("reaper removed rows", "kind", kind, "count", n)
	}
	if err != nil {
		slog.Error("reaper step failed", "kind", kind, "error", err)
	}
}
