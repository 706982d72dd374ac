package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/clipshelf/server/internal/logger"
	"github.com/clipshelf/server/internal/response"
)

// Recover turns a panicking handler into a 500 response. The panic is
// logged at error level, which also reports it to Sentry when configured.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}

			logger.FromContext(r.Context()).Error("panic in handler",
				"panic", p,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			response.Error(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
