package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict is returned when a compare-and-swap update matched no row
	// because the row changed underneath the caller.
	ErrConflict = errors.New("concurrent modification")
)

// uniqueViolation reports whether err is a unique constraint violation and,
// if so, which constraint or column it names. Works for both SQLite and
// PostgreSQL.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return pgErr.ConstraintName, true
		}
		return "", false
	}

	errStr := err.Error()
	const sqlitePrefix = "UNIQUE constraint failed: "
	if i := strings.Index(errStr, sqlitePrefix); i >= 0 {
		return errStr[i+len(sqlitePrefix):], true
	}
	if strings.Contains(errStr, "duplicate key value") {
		return errStr, true
	}
	return "", false
}

// IsTransient reports whether err is a lock or serialization failure that is
// safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database table is locked")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
