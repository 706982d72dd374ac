package routes

import (
	"net/http"

	"github.com/clipshelf/server/internal/app"
	"github.com/clipshelf/server/internal/handler"
	"github.com/clipshelf/server/internal/middleware"
	"github.com/clipshelf/server/internal/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	auth := handler.NewAuthHandler(app.AccountService, app.SessionService)
	account := handler.NewAccountHandler(app.AccountService)
	clip := handler.NewClipHandler(app.ClipService, app.TagService, app.Recorder)
	tag := handler.NewTagHandler(app.TagService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("POST /api/auth/register", auth.Register)
	mux.HandleFunc("POST /api/auth/login", auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", auth.Refresh)

	// Clips readable without an account (auth optional)
	mux.HandleFunc("GET /api/clips/public", clip.ListPublic)
	mux.HandleFunc("GET /api/clips/{ref}", clip.Get)
	mux.HandleFunc("GET /api/clips/{ref}/render", clip.Render)
	mux.HandleFunc("GET /s/{short_url}", clip.Resolve)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("POST /api/auth/logout", middleware.RequireAuth(auth.Logout))
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))
	mux.HandleFunc("DELETE /api/account", middleware.RequireAuth(account.DeleteAccount))

	// Clips
	mux.HandleFunc("POST /api/clips", middleware.RequireAuth(clip.Create))
	mux.HandleFunc("GET /api/clips", middleware.RequireAuth(clip.ListOwn))
	mux.HandleFunc("PUT /api/clips/{id}", middleware.RequireAuth(clip.Update))
	mux.HandleFunc("DELETE /api/clips/{id}", middleware.RequireAuth(clip.Delete))
	mux.HandleFunc("GET /api/clips/{id}/access-logs", middleware.RequireAuth(clip.AccessLogs))
	mux.HandleFunc("POST /api/clips/{id}/tags", middleware.RequireAuth(clip.AttachTags))
	mux.HandleFunc("DELETE /api/clips/{id}/tags", middleware.RequireAuth(clip.DetachTags))

	// Tags
	mux.HandleFunc("GET /api/tags", middleware.RequireAuth(tag.List))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "not found")
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestID,      // Request id must be first (used by every log line)
		middleware.RequestLogging, // Logs after the response, with the final status
		middleware.Recover,        // Inside logging so panics are logged as 500s
		middleware.SecurityHeaders,
		middleware.Authenticate(app.SessionService),
		middleware.Metrics, // Must wrap the mux directly to see r.Pattern
	)

	return handler
}
