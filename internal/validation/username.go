package validation

import (
	"errors"
	"strings"
)

// ValidateUsername allows 3-32 characters of letters, digits, '_', '-' and
// '.'. An '@' is never valid, so login identifiers containing one are
// always emails.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username is required")
	}
	if len(username) < 3 || len(username) > 32 {
		return errors.New("username must be between 3 and 32 characters")
	}

	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return errors.New("username may only contain letters, digits, '_', '-' and '.'")
		}
	}

	return nil
}
