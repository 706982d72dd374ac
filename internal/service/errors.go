package service

import "errors"

// Outcomes surfaced to callers. Each maps to a distinct HTTP status in the
// handler layer; repository errors never leak past this package.
var (
	ErrDuplicateIdentity  = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account disabled")

	ErrTokenExpired   = errors.New("token expired")
	ErrRefreshExpired = errors.New("refresh token expired")
	ErrTokenNotFound  = errors.New("token not found")

	ErrNotFound  = errors.New("not found")
	ErrExpired   = errors.New("clip expired")
	ErrForbidden = errors.New("forbidden")

	ErrValidation = errors.New("validation failed")
	ErrTransient  = errors.New("temporary failure, please retry")
)
