package model

import (
	"time"
)

type Session struct {
	ID               int64     `db:"id"`
	UserID           int64     `db:"user_id"`
	Token            string    `db:"token"`
	RefreshToken     string    `db:"refresh_token"`
	ExpiresAt        time.Time `db:"expires_at"`
	RefreshExpiresAt time.Time `db:"refresh_expires_at"`
	IPAddress        *string   `db:"ip_address"`
	DeviceInfo       *string   `db:"device_info"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// IsExpired reports whether the access token is past expires_at.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsRefreshExpired reports whether the refresh token is past refresh_expires_at.
func (s *Session) IsRefreshExpired(now time.Time) bool {
	return now.After(s.RefreshExpiresAt)
}
