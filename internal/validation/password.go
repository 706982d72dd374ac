package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidatePassword validates password strength
// Minimum 12 characters, blocks common patterns
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 12 {
		return errors.New("password must be at least 12 characters")
	}

	// Upper bound keeps hashing cost predictable
	if n > 128 {
		return errors.New("password must not exceed 128 characters")
	}

	lower := strings.ToLower(password)
	commonPatterns := []string{
		"password", "123456", "qwerty", "admin", "letmein",
		"welcome", "monkey", "dragon", "master", "sunshine",
	}

	for _, pattern := range commonPatterns {
		if strings.Contains(lower, pattern) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}

	return nil
}
