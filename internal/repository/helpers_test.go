package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clipshelf/server/internal/db"
	"github.com/clipshelf/server/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var nextTestID atomic.Int64

func testID() int64 {
	return 1000 + nextTestID.Add(1)
}

// baseTime is a fixed UTC instant with microsecond precision, matching what
// services store.
var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_time_format=sqlite&_txlock=immediate"

	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), database.DB, "sqlite"))
	return database
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestDB(t))
}

func createUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	ip := "127.0.0.1"
	u := &model.User{
		ID:           testID(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash-" + username,
		Salt:         "salt",
		Status:       model.UserStatusActive,
		RegisterIP:   &ip,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func createClip(t *testing.T, s *Store, owner *model.User, access model.AccessType, expiresAt *time.Time) *model.Clip {
	t.Helper()
	id := testID()
	c := &model.Clip{
		ID:          id,
		UserID:      owner.ID,
		Content:     "print(1)",
		ContentType: model.ContentTypeCode,
		AccessType:  access,
		ExpiresAt:   expiresAt,
		ShortURL:    fmt.Sprintf("c%05d", id%100000),
		Tags:        model.TagList{},
		CreatedAt:   baseTime.Add(time.Duration(id) * time.Millisecond),
		UpdatedAt:   baseTime,
	}
	require.NoError(t, s.Clips.Create(context.Background(), c))
	return c
}

func timePtr(t time.Time) *time.Time {
	return &t
}
