// Package telemetry registers the Prometheus metrics exposed on GET /metrics.
//
// All metrics live in the default registry. HTTP metrics are labelled by the
// ServeMux pattern (for example "GET /api/clips/{ref}") rather than the raw
// URL, so clip ids and short urls never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, recorded by middleware.Metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Clip and access log metrics.
//
// ClipViewsTotal counts successful reads by access type. AccessLogWritesTotal
// counts recorder outcomes: ok, failed (insert error) and dropped (queue full
// or recorder closed).
var (
	ClipViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_views_total",
			Help: "Total number of successful clip reads, by access type.",
		},
		[]string{"access_type"},
	)

	AccessLogWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_log_writes_total",
			Help: "Total number of access log writes, by result (ok, failed, dropped).",
		},
		[]string{"result"},
	)
)

// Session metrics.
var (
	SessionsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_issued_total",
			Help: "Total number of sessions issued at login.",
		},
	)

	SessionRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refresh_total",
			Help: "Total number of refresh attempts, by result (ok, expired, not_found, error).",
		},
		[]string{"result"},
	)
)

// ReaperDeletedTotal counts rows removed by the background reaper, by kind
// (sessions, expired_clips, deleted_clips, users, tags).
var ReaperDeletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reaper_deleted_total",
		Help: "Total number of rows removed by the reaper, by kind.",
	},
	[]string{"kind"},
)

// DBOpenConnections tracks the open connections held by the pool. It is
// sampled by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is
// cancelled.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := db.PingContext(ctx)
				if err != nil {
					slog.Warn("db stats collector: database unreachable", "error", err)
					continue
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
