package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clipshelf/server/internal/crypto"
	"github.com/clipshelf/server/internal/db"
	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/markdown"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/repository"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct-horse-battery"
	testSecret   = "test-secret-with-at-least-32-characters!"
	accessTTL    = 15 * time.Minute
	refreshTTL   = 24 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryArchive records saved objects.
type memoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *memoryArchive) Save(ctx context.Context, path string, body io.Reader) error {
	if a.err != nil {
		return a.err
	}
	var buf bytes.Buffer
	_, err := io.Copy(&buf, body)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[path] = buf.Bytes()
	return nil
}

func (a *memoryArchive) Delete(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, path)
	return nil
}

type testEnv struct {
	store    *repository.Store
	clock    *fakeClock
	archive  *memoryArchive
	accounts *AccountService
	sessions *SessionService
	tags     *TagService
	recorder *Recorder
	clips    *ClipService
}

func fastHasher() *PasswordHasher {
	return &PasswordHasher{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "service.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_time_format=sqlite&_txlock=immediate"

	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), database.DB, "sqlite"))
	return repository.NewStore(database)
}

// newTestEnv wires every service over a fresh database with a frozen
// clock and a synchronous recorder.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t)

	ids, err := idgen.New(1)
	require.NoError(t, err)
	cipher, err := crypto.DeriveKeyCipher(testSecret)
	require.NoError(t, err)

	clock := newFakeClock()
	archive := &memoryArchive{}

	env := &testEnv{
		store:    store,
		clock:    clock,
		archive:  archive,
		accounts: NewAccountService(store, ids, fastHasher()),
		sessions: NewSessionService(store, ids, testSecret, accessTTL, refreshTTL),
		tags:     NewTagService(store, ids),
		recorder: NewRecorder(store, ids, 0, 0),
	}
	env.clips = NewClipService(store, ids, env.tags, env.recorder, cipher, markdown.NewRenderer(), archive, 1<<16)

	env.accounts.now = clock.Now
	env.sessions.now = clock.Now
	env.tags.now = clock.Now
	env.recorder.now = clock.Now
	env.clips.now = clock.Now
	return env
}

func (e *testEnv) register(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), username, username+"@example.com", testPassword, "127.0.0.1")
	require.NoError(t, err)
	return user
}

func (e *testEnv) createClip(t *testing.T, owner int64, in CreateClipInput) *model.Clip {
	t.Helper()
	if in.Content == "" {
		in.Content = "print(1)"
	}
	clip, err := e.clips.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return clip
}

func (e *testEnv) usage(t *testing.T, userID int64, name string) int64 {
	t.Helper()
	tag, err := e.store.Tags.ByName(context.Background(), userID, name)
	if err == repository.ErrTagNotFound {
		return 0
	}
	require.NoError(t, err)
	return tag.UsageCount
}

func (e *testEnv) accessLogCount(t *testing.T, clipID int64) int64 {
	t.Helper()
	n, err := e.store.AccessLogs.CountByContent(context.Background(), clipID)
	require.NoError(t, err)
	return n
}

func ptr[T any](v T) *T {
	return &v
}

// scripted returns a generator that hands out values in order and then
// repeats the last one, plus a pointer to its call count.
func scripted(values ...string) (func(int) (string, error), *int) {
	calls := 0
	return func(int) (string, error) {
		v := values[min(calls, len(values)-1)]
		calls++
		return v, nil
	}, &calls
}
