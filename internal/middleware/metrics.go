package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/clipshelf/server/internal/telemetry"
)

const unmatchedPattern = "unmatched"

// Metrics records request counts and latencies labelled by the ServeMux
// pattern. It must wrap the mux directly: the mux sets r.Pattern on the
// request it receives, so the pattern is only visible here if no middleware
// in between replaced the request.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)

		next.ServeHTTP(rw, r)

		pattern := r.Pattern
		if pattern == "" {
			pattern = unmatchedPattern
		}
		telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.statusCode)).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
