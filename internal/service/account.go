package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/repository"
	"github.com/clipshelf/server/internal/validation"
)

type AccountService struct {
	store  *repository.Store
	ids    *idgen.Generator
	hasher *PasswordHasher
	now    Clock

	// dummyHash is verified against when the user does not exist so that
	// unknown and known identifiers take the same time.
	dummyHash string
	dummySalt string
}

func NewAccountService(store *repository.Store, ids *idgen.Generator, hasher *PasswordHasher) *AccountService {
	s := &AccountService{
		store:  store,
		ids:    ids,
		hasher: hasher,
		now:    systemClock,
	}
	s.dummyHash, s.dummySalt, _ = hasher.Hash("clipshelf-dummy-password")
	return s
}

// Register creates an active account. Username and email collisions are
// detected by the unique constraints, so concurrent registrations of the
// same identity cannot both succeed.
func (s *AccountService) Register(ctx context.Context, username, email, password, ip string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	err := validation.ValidateUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	err = validation.ValidateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	err = validation.ValidatePassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           s.ids.NextID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		Status:       model.UserStatusActive,
		RegisterIP:   optional(ip),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUsername) || errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrDuplicateIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// VerifyCredentials checks a username (or email, when identifier contains
// "@") and password, and records the login. Unknown, deleted and
// wrong-password accounts all fail with ErrInvalidCredentials.
func (s *AccountService) VerifyCredentials(ctx context.Context, identifier, password, ip string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)

	var user *model.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.store.Users.ByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.store.Users.ByUsername(ctx, identifier)
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		_, _ = s.hasher.Verify(password, s.dummyHash, s.dummySalt)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash, user.Salt)
	if err != nil {
		slog.Error("stored password hash is unreadable", "error", err, "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if user.Status == model.UserStatusDisabled {
		return nil, ErrAccountDisabled
	}

	updated, err := s.store.Users.RecordLogin(ctx, user.ID, user.PasswordHash, ip, s.now())
	if errors.Is(err, repository.ErrUserNotFound) {
		// Password changed, account disabled or deleted since the read.
		current, lookupErr := s.store.Users.ByID(ctx, user.ID)
		if lookupErr == nil && current.Status == model.UserStatusDisabled {
			return nil, ErrAccountDisabled
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return updated, nil
}

func (s *AccountService) ByID(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.store.Users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetStatus enables or disables an account. Disabling also revokes every
// session so existing tokens stop working at once.
func (s *AccountService) SetStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	if status != model.UserStatusActive && status != model.UserStatusDisabled {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		err := tx.Users.SetStatus(ctx, userID, status, s.now())
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to set status: %w", err)
		}

		if status == model.UserStatusDisabled {
			_, err = tx.Sessions.DeleteByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
		}
		return nil
	})
}

// SoftDelete marks the account deleted and, in the same transaction,
// revokes its sessions, soft-deletes its clips, zeroes its tag counters and
// detaches its id from access logs it produced as a viewer.
func (s *AccountService) SoftDelete(ctx context.Context, userID int64) error {
	err := retry(ctx, 3, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			now := s.now()

			err := tx.Users.SoftDelete(ctx, userID, now)
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}

			_, err = tx.Sessions.DeleteByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}

			_, err = tx.Clips.SoftDeleteByUser(ctx, userID, now)
			if err != nil {
				return fmt.Errorf("failed to delete clips: %w", err)
			}

			_, err = tx.Tags.ResetByUser(ctx, userID, now)
			if err != nil {
				return fmt.Errorf("failed to reset tags: %w", err)
			}

			_, err = tx.AccessLogs.DetachUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to detach access logs: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	slog.Info("user soft-deleted", "user_id", userID)
	return nil
}

// Purge physically removes a user and everything that references it,
// applying the schema's cascade rules explicitly: sessions, tags, owned
// clips and their access logs are deleted; access logs the user produced on
// other users' clips keep their row with user_id cleared.
func (s *AccountService) Purge(ctx context.Context, userID int64) error {
	return retry(ctx, 3, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			_, err := tx.AccessLogs.DetachUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to detach access logs: %w", err)
			}
			_, err = tx.AccessLogs.DeleteByContentOwner(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to delete access logs: %w", err)
			}
			_, err = tx.Tags.DeleteByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to delete tags: %w", err)
			}
			_, err = tx.Clips.DeleteByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to delete clips: %w", err)
			}
			_, err = tx.Sessions.DeleteByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to delete sessions: %w", err)
			}

			err = tx.Users.HardDelete(ctx, userID)
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}
			return nil
		})
	})
}

// PurgeDeleted purges up to limit users soft-deleted before cutoff and
// returns how many were removed.
func (s *AccountService) PurgeDeleted(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	ids, err := s.store.Users.DeletedBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list deleted users: %w", err)
	}

	purged := 0
	for _, id := range ids {
		err := s.Purge(ctx, id)
		if err != nil {
			slog.Error("failed to purge user", "error", err, "user_id", id)
			continue
		}
		purged++
	}
	return purged, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
