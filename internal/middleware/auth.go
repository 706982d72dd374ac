package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipshelf/server/internal/ctxkeys"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/response"
)

// TokenValidator resolves a bearer token to its user and session.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*model.User, *model.Session, error)
}

// Authenticate checks for a bearer token and adds user + session to context
// if valid. Requests without a token, or with a rejected one, continue
// anonymously; the rejection reason is kept for RequireAuth.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, session, err := validator.Validate(r.Context(), token)
			if err != nil {
				ctx := ctxkeys.WithAuthError(r.Context(), err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			ctx = ctxkeys.WithSession(ctx, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that Authenticate did not resolve to a user.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) != nil {
			next(w, r)
			return
		}

		err := ctxkeys.AuthError(r.Context())
		if err == nil {
			response.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		response.FromError(w, r, err)
	}
}

// BearerToken returns the token from an "Authorization: Bearer <token>"
// header, or "" when there is none.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
