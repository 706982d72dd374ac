package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/repository"
	"github.com/clipshelf/server/internal/safego"
	"github.com/clipshelf/server/internal/telemetry"
)

const (
	accessLogWriteTimeout = 5 * time.Second
	maxAccessLogLimit     = 500
)

// AccessMeta describes the request that read a clip.
type AccessMeta struct {
	IP        string
	UserAgent string
	Referer   string
}

// Recorder appends access log entries. Writes never fail or slow down the
// read that triggered them: errors are logged and counted, and when the
// queue is full the entry is dropped.
type Recorder struct {
	store *repository.Store
	ids   *idgen.Generator
	now   Clock

	queue  chan *model.AccessLog
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts workers goroutines draining a queue of queueSize
// entries. With workers = 0 every entry is written synchronously.
func NewRecorder(store *repository.Store, ids *idgen.Generator, workers, queueSize int) *Recorder {
	r := &Recorder{
		store: store,
		ids:   ids,
		now:   systemClock,
	}
	if workers <= 0 {
		return r
	}

	if queueSize < 1 {
		queueSize = 1
	}
	r.queue = make(chan *model.AccessLog, queueSize)
	for range workers {
		safego.GoWait(&r.wg, r.work)
	}
	return r
}

// Record appends one entry for a successful read of contentID.
func (r *Recorder) Record(ctx context.Context, contentID int64, viewer *int64, meta AccessMeta) {
	entry := &model.AccessLog{
		ID:         r.ids.NextID(),
		ContentID:  contentID,
		UserID:     viewer,
		AccessIP:   optional(meta.IP),
		UserAgent:  optional(meta.UserAgent),
		Referer:    optional(meta.Referer),
		AccessedAt: r.now(),
	}

	if r.queue == nil {
		r.write(context.WithoutCancel(ctx), entry)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(entry, "recorder closed")
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.drop(entry, "queue full")
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (r *Recorder) Close() {
	if r.queue == nil {
		return
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// ListForClip returns the most recent entries for a clip owned by ownerID.
func (r *Recorder) ListForClip(ctx context.Context, ownerID, clipID int64, limit int) ([]*model.AccessLog, error) {
	if limit < 1 || limit > maxAccessLogLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, maxAccessLogLimit)
	}

	_, err := ownedClip(ctx, r.store, ownerID, clipID)
	if err != nil {
		return nil, err
	}

	entries, err := r.store.AccessLogs.ListByContent(ctx, clipID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return entries, nil
}

func (r *Recorder) work() {
	for entry := range r.queue {
		r.write(context.Background(), entry)
	}
}

func (r *Recorder) write(ctx context.Context, entry *model.AccessLog) {
	ctx, cancel := context.WithTimeout(ctx, accessLogWriteTimeout)
	defer cancel()

	err := r.store.AccessLogs.Create(ctx, entry)
	if err != nil {
		telemetry.AccessLogWritesTotal.WithLabelValues("failed").Inc()
		slog.Warn("failed to write access log", "error", err, "content_id", entry.ContentID)
		return
	}
	telemetry.AccessLogWritesTotal.WithLabelValues("ok").Inc()
}

func (r *Recorder) drop(entry *model.AccessLog, reason string) {
	telemetry.AccessLogWritesTotal.WithLabelValues("dropped").Inc()
	slog.Warn("access log dropped", "reason", reason, "content_id", entry.ContentID)
}
