package ctxkeys

import (
	"context"

	"github.com/clipshelf/server/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey      contextKey = "user"
	SessionKey   contextKey = "session"
	RequestIDKey contextKey = "request_id"
	AuthErrorKey contextKey = "auth_error"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// UserID returns the authenticated user's id, or nil for anonymous requests.
func UserID(ctx context.Context) *int64 {
	user := User(ctx)
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

func Session(ctx context.Context) *model.Session {
	session, _ := ctx.Value(SessionKey).(*model.Session)
	return session
}

func WithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// AuthError holds the reason a presented bearer token was rejected, so that
// routes requiring auth can report it.
func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(AuthErrorKey).(error)
	return err
}

func WithAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, AuthErrorKey, err)
}
