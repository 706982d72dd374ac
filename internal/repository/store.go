package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories can
// run inside or outside a transaction.
type Querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store groups the repositories over one database handle.
type Store struct {
	db *sqlx.DB
	tx *sqlx.Tx

	Users      UserRepository
	Sessions   SessionRepository
	Clips      ClipRepository
	Tags       TagRepository
	AccessLogs AccessLogRepository
}

func NewStore(db *sqlx.DB) *Store {
	return newStore(db, nil, db)
}

func newStore(db *sqlx.DB, tx *sqlx.Tx, q Querier) *Store {
	return &Store{
		db:         db,
		tx:         tx,
		Users:      NewUserRepository(q),
		Sessions:   NewSessionRepository(q),
		Clips:      NewClipRepository(q),
		Tags:       NewTagRepository(q),
		AccessLogs: NewAccessLogRepository(q),
	}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// InTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise. Calling InTx on a Store that is already bound to a
// transaction runs fn in that transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	err = fn(newStore(s.db, tx, tx))
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
