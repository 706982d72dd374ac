package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/repository"
	"github.com/clipshelf/server/internal/telemetry"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAttempts     = 3
	refreshTokenBytes = 32
)

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	Token            string    `json:"token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// accessClaims are carried by the access token. The token is only a
// lookup key: expiry and revocation are decided by the session row.
type accessClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type SessionService struct {
	store      *repository.Store
	ids        *idgen.Generator
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	newToken   func(n int) (string, error)
	now        Clock
}

func NewSessionService(store *repository.Store, ids *idgen.Generator, secret string, accessTTL, refreshTTL time.Duration) *SessionService {
	return &SessionService{
		store:      store,
		ids:        ids,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		newToken:   idgen.RandomToken,
		now:        systemClock,
	}
}

// Issue opens a new session for userID. Token collisions are retried a few
// times before giving up with ErrTransient.
func (s *SessionService) Issue(ctx context.Context, userID int64, deviceInfo, ip string) (*TokenPair, error) {
	var session *model.Session
	attempt := 0
	err := retry(ctx, tokenAttempts, func() error {
		attempt++
		now := s.now()
		next, err := s.newSession(s.ids.NextID(), userID, now)
		if err != nil {
			return err
		}
		next.DeviceInfo = optional(deviceInfo)
		next.IPAddress = optional(ip)
		next.CreatedAt = now
		next.UpdatedAt = now

		err = s.store.Sessions.Create(ctx, next)
		if err != nil && retryable(err) {
			slog.Warn("session insert collided", "user_id", userID, "attempt", attempt)
		}
		if err != nil {
			return err
		}
		session = next
		return nil
	})
	if errors.Is(err, ErrTransient) {
		return nil, fmt.Errorf("could not issue a unique session token: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	telemetry.SessionsIssuedTotal.Inc()
	return pairOf(session), nil
}

// Validate resolves an access token to its live, active user. It only
// reads, so it never waits on writers.
func (s *SessionService) Validate(ctx context.Context, token string) (*model.User, *model.Session, error) {
	_, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, nil, ErrTokenNotFound
	}

	session, err := s.store.Sessions.ByToken(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.IsExpired(s.now()) {
		return nil, nil, ErrTokenExpired
	}

	user, err := s.store.Users.ByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive() {
		return nil, nil, ErrTokenNotFound
	}

	return user, session, nil
}

// Refresh rotates the session's token pair. The old refresh token is
// consumed by a compare-and-swap, so of two concurrent refreshes with the
// same token exactly one succeeds.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, result, err := s.refresh(ctx, refreshToken)
	telemetry.SessionRefreshTotal.WithLabelValues(result).Inc()
	return pair, err
}

func (s *SessionService) refresh(ctx context.Context, refreshToken string) (*TokenPair, string, error) {
	if refreshToken == "" {
		return nil, "not_found", ErrTokenNotFound
	}

	var pair *TokenPair
	result := "error"
	err := retry(ctx, tokenAttempts, func() error {
		current, err := s.store.Sessions.ByRefreshToken(ctx, refreshToken)
		if errors.Is(err, repository.ErrSessionNotFound) {
			result = "not_found"
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		now := s.now()
		if current.IsRefreshExpired(now) {
			result = "expired"
			return ErrRefreshExpired
		}

		user, err := s.store.Users.ByID(ctx, current.UserID)
		if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !user.IsActive()) {
			result = "not_found"
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		next, err := s.newSession(current.ID, current.UserID, now)
		if err != nil {
			return err
		}

		rotated, err := s.store.Sessions.Rotate(ctx, refreshToken, next, now)
		if errors.Is(err, repository.ErrSessionNotFound) {
			// Lost the race or crossed the expiry instant. A row still
			// holding the old token can only mean it expired.
			_, lookupErr := s.store.Sessions.ByRefreshToken(ctx, refreshToken)
			if lookupErr == nil {
				result = "expired"
				return ErrRefreshExpired
			}
			result = "not_found"
			return ErrTokenNotFound
		}
		if err != nil {
			if retryable(err) {
				return err
			}
			return fmt.Errorf("failed to rotate session: %w", err)
		}

		pair = pairOf(rotated)
		result = "ok"
		return nil
	})
	if errors.Is(err, ErrTransient) {
		return nil, "error", fmt.Errorf("could not rotate session token: %w", err)
	}
	if err != nil {
		return nil, result, err
	}
	return pair, result, nil
}

// Revoke ends the session identified by its access token.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	err := s.store.Sessions.DeleteByToken(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAll ends every session of userID and returns how many there were.
func (s *SessionService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.Sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return n, nil
}

// ReapExpired removes sessions whose refresh token expired before now.
func (s *SessionService) ReapExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.Sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

// newSession builds a fresh token pair for session id, valid from now.
func (s *SessionService) newSession(id, userID int64, now time.Time) (*model.Session, error) {
	expiresAt := now.Add(s.accessTTL)

	claims := accessClaims{
		SessionID: strconv.FormatInt(id, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        idgen.NewKSUID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := s.newToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &model.Session{
		ID:               id,
		UserID:           userID,
		Token:            token,
		RefreshToken:     refreshToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func pairOf(session *model.Session) *TokenPair {
	return &TokenPair{
		Token:            session.Token,
		RefreshToken:     session.RefreshToken,
		ExpiresAt:        session.ExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
	}
}
