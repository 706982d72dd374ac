package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/clipshelf/server/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id int64) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	RecordLogin(ctx context.Context, id int64, passwordHash, ip string, at time.Time) (*model.User, error)
	SetStatus(ctx context.Context, id int64, status model.UserStatus, at time.Time) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	DeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
	HardDelete(ctx context.Context, id int64) error
}

type userRepository struct {
	db Querier
}

func NewUserRepository(db Querier) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, salt, status, login_count, register_ip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Salt,
		user.Status,
		user.LoginCount,
		user.RegisterIP,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "username") {
			return ErrDuplicateUsername
		}
		return ErrDuplicateEmail
	}
	return err
}

// ByID returns a live (not soft-deleted) user.
func (r *userRepository) ByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *userRepository) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE username = $1 AND deleted_at IS NULL`, username)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE email = $1 AND deleted_at IS NULL`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RecordLogin bumps the login counters only if the row still carries the
// password hash the caller verified and the account is active, so the
// update is atomic with the credential check.
func (r *userRepository) RecordLogin(ctx context.Context, id int64, passwordHash, ip string, at time.Time) (*model.User, error) {
	query := `
		UPDATE users
		SET login_count = login_count + 1,
		    last_login_at = $1,
		    last_login_ip = $2,
		    updated_at = $1
		WHERE id = $3
		AND password_hash = $4
		AND status = 'active'
		AND deleted_at IS NULL
		RETURNING *
	`

	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, at, nullString(ip), id, passwordHash)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) SetStatus(ctx context.Context, id int64, status model.UserStatus, at time.Time) error {
	query := `UPDATE users SET status = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`
	return execOne(ctx, r.db, ErrUserNotFound, query, status, at, id)
}

func (r *userRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	return execOne(ctx, r.db, ErrUserNotFound, query, at, id)
}

// DeletedBefore lists ids of users soft-deleted before cutoff, oldest first.
func (r *userRepository) DeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM users WHERE deleted_at IS NOT NULL AND deleted_at < $1 ORDER BY deleted_at LIMIT $2`
	err := r.db.SelectContext(ctx, &ids, query, cutoff, limit)
	return ids, err
}

// HardDelete removes the user row. Dependent rows must be removed first
// (see AccountService.Purge).
func (r *userRepository) HardDelete(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, ErrUserNotFound, `DELETE FROM users WHERE id = $1`, id)
}

// execOne runs a statement expected to touch at least one row and returns
// notFound when it touched none.
func execOne(ctx context.Context, db Querier, notFound error, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return notFound
	}

	return nil
}

func execCount(ctx context.Context, db Querier, query string, args ...any) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
