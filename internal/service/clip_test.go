package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipshelf/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shortURLPattern = regexp.MustCompile(`^[0-9A-Za-z]{6}$`)

func TestClipService_CreateThenGetByShortURL(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	created, err := env.clips.Create(ctx, owner.ID, CreateClipInput{
		Content:     "print(1)",
		ContentType: model.ContentTypeCode,
		AccessType:  model.AccessTypeUnlisted,
		TTL:         3600,
	})
	require.NoError(t, err)
	assert.Regexp(t, shortURLPattern, created.ShortURL)
	assert.Zero(t, created.ViewCount)
	require.NotNil(t, created.ExpiresAt)
	assert.True(t, created.ExpiresAt.Equal(env.clock.Now().Add(time.Hour)))

	got, err := env.clips.Get(ctx, created.ShortURL, nil, AccessMeta{IP: "10.1.1.1", UserAgent: "curl/8"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Content, got.Content)
	assert.Equal(t, int64(1), got.ViewCount)

	entries, err := env.store.AccessLogs.ListByContent(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
	assert.Equal(t, "10.1.1.1", *entries[0].AccessIP)
	assert.Equal(t, "curl/8", *entries[0].UserAgent)
	assert.Nil(t, entries[0].Referer)

	byID, err := env.clips.Get(ctx, strconv.FormatInt(created.ID, 10), nil, AccessMeta{})
	require.NoError(t, err)
	assert.Equal(t, created.ShortURL, byID.ShortURL)
	assert.Equal(t, int64(2), byID.ViewCount)
}

func TestClipService_Create_Defaults(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	clip := env.createClip(t, owner.ID, CreateClipInput{Content: "hello"})
	assert.Equal(t, model.ContentTypeText, clip.ContentType)
	assert.Equal(t, model.AccessTypePrivate, clip.AccessType)
	assert.Nil(t, clip.ExpiresAt)
	assert.Equal(t, model.TagList{}, clip.Tags)
}

func TestClipService_ShortURLsAreUnique(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	seen := make(map[string]int64)
	for range 50 {
		clip := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic})
		_, dup := seen[clip.ShortURL]
		require.False(t, dup, "short url %s issued twice", clip.ShortURL)
		seen[clip.ShortURL] = clip.ID
	}

	for shortURL, id := range seen {
		got, err := env.clips.Get(ctx, shortURL, nil, AccessMeta{})
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
	}
}

func TestClipService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	tests := []struct {
		name string
		in   CreateClipInput
	}{
		{"empty content", CreateClipInput{Content: "  "}},
		{"too large", CreateClipInput{Content: strings.Repeat("x", 1<<16+1)}},
		{"unknown content type", CreateClipInput{Content: "x", ContentType: "binary"}},
		{"unknown access type", CreateClipInput{Content: "x", AccessType: "friends"}},
		{"negative ttl", CreateClipInput{Content: "x", TTL: -1}},
		{"relative url", CreateClipInput{Content: "/just/a/path", ContentType: model.ContentTypeURL}},
		{"ftp url", CreateClipInput{Content: "ftp://example.com/file", ContentType: model.ContentTypeURL}},
		{"encrypted without key", CreateClipInput{Content: "blob", IsEncrypted: true}},
		{"key without encryption", CreateClipInput{Content: "x", EncryptionKey: ptr("k")}},
		{"title too long", CreateClipInput{Content: "x", Title: ptr(strings.Repeat("t", 256))}},
		{"bad tag", CreateClipInput{Content: "x", Tags: []string{"a,b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.clips.Create(ctx, owner.ID, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

// An expired clip is reported as expired whatever its access type and
// whoever asks.
func TestClipService_Get_ExpiredBeforeAccessCheck(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	other := env.register(t, "bob")

	var clips []*model.Clip
	for _, access := range []model.AccessType{model.AccessTypePrivate, model.AccessTypePublic, model.AccessTypeUnlisted} {
		clips = append(clips, env.createClip(t, owner.ID, CreateClipInput{AccessType: access, TTL: 60}))
	}

	env.clock.Advance(61 * time.Second)

	for _, clip := range clips {
		for _, requester := range []*int64{nil, &owner.ID, &other.ID} {
			_, err := env.clips.Get(ctx, clip.ShortURL, requester, AccessMeta{})
			assert.ErrorIs(t, err, ErrExpired, "access=%s", clip.AccessType)
		}
		assert.Zero(t, env.accessLogCount(t, clip.ID))
	}
}

func TestClipService_Get_PrivateIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	other := env.register(t, "bob")
	clip := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePrivate})

	_, err := env.clips.Get(ctx, clip.ShortURL, nil, AccessMeta{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.clips.Get(ctx, clip.ShortURL, &other.ID, AccessMeta{})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := env.clips.Get(ctx, clip.ShortURL, &owner.ID, AccessMeta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)

	_, err = env.clips.Get(ctx, "zzzzzz", &owner.ID, AccessMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.clips.Get(ctx, "not a ref", &owner.ID, AccessMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClipService_Get_ConcurrentViewsAreNotLost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	clip := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic})

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.clips.Get(ctx, clip.ShortURL, nil, AccessMeta{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := env.store.Clips.ByID(ctx, clip.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.ViewCount)
	assert.Equal(t, int64(n), env.accessLogCount(t, clip.ID))
}

func TestClipService_EncryptionKeyWrappedAtRest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	other := env.register(t, "bob")

	created := env.createClip(t, owner.ID, CreateClipInput{
		Content:       "b3BhcXVlIGNpcGhlcnRleHQ=",
		AccessType:    model.AccessTypeUnlisted,
		IsEncrypted:   true,
		EncryptionKey: ptr("client-key"),
	})
	require.NotNil(t, created.EncryptionKey)
	assert.Equal(t, "client-key", *created.EncryptionKey)

	stored, err := env.store.Clips.ByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EncryptionKey)
	assert.True(t, strings.HasPrefix(*stored.EncryptionKey, "v1:"))
	assert.NotContains(t, *stored.EncryptionKey, "client-key")
	assert.Equal(t, "b3BhcXVlIGNpcGhlcnRleHQ=", stored.Content)

	mine, err := env.clips.Get(ctx, created.ShortURL, &owner.ID, AccessMeta{})
	require.NoError(t, err)
	require.NotNil(t, mine.EncryptionKey)
	assert.Equal(t, "client-key", *mine.EncryptionKey)

	theirs, err := env.clips.Get(ctx, created.ShortURL, &other.ID, AccessMeta{})
	require.NoError(t, err)
	assert.Nil(t, theirs.EncryptionKey)

	body, err := json.Marshal(theirs)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "encryption_key")
}

func TestClipService_MarkdownTagsAndRender(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	source := "---\ntags: [Go, SQL]\n---\n# Notes\n\nHello *world*\n"
	clip := env.createClip(t, owner.ID, CreateClipInput{
		Content:     source,
		ContentType: model.ContentTypeMarkdown,
		AccessType:  model.AccessTypePublic,
		Tags:        []string{"go", "notes"},
	})
	assert.Equal(t, model.TagList{"go", "notes", "sql"}, clip.Tags)
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "go"))
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "sql"))

	rendered, err := env.clips.Render(ctx, clip.ShortURL, nil, AccessMeta{})
	require.NoError(t, err)
	assert.Contains(t, rendered.HTML, "<em>world</em>")
	assert.NotContains(t, rendered.HTML, "tags:")
	assert.Equal(t, []any{"Go", "SQL"}, rendered.Meta["tags"])
	assert.Equal(t, int64(1), rendered.Clip.ViewCount)

	code := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic})
	_, err = env.clips.Render(ctx, code.ShortURL, nil, AccessMeta{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, env.accessLogCount(t, code.ID))
}

func TestClipService_Resolve(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	clip := env.createClip(t, owner.ID, CreateClipInput{
		Content:     "https://example.com/docs",
		ContentType: model.ContentTypeURL,
		AccessType:  model.AccessTypeUnlisted,
	})

	got, err := env.clips.Resolve(ctx, clip.ShortURL, nil, AccessMeta{Referer: "https://chat.example"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs", got.Content)

	_, err = env.clips.Resolve(ctx, strconv.FormatInt(clip.ID, 10), nil, AccessMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClipService_ListOwnAndPublic(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	other := env.register(t, "bob")

	public := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic})
	env.clock.Advance(time.Second)
	env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypeUnlisted})
	env.clock.Advance(time.Second)
	env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePrivate, TTL: 1})
	env.clock.Advance(time.Second)
	deleted := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic})
	require.NoError(t, env.clips.Delete(ctx, owner.ID, deleted.ID))
	env.createClip(t, other.ID, CreateClipInput{AccessType: model.AccessTypePrivate})
	env.clock.Advance(5 * time.Second)

	own, err := env.clips.ListOwn(ctx, owner.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), own.Total)
	require.Len(t, own.Items, 3)
	assert.Equal(t, public.ID, own.Items[2].ID)

	page2, err := env.clips.ListOwn(ctx, owner.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, public.ID, page2.Items[0].ID)

	pub, err := env.clips.ListPublic(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pub.Total)
	require.Len(t, pub.Items, 1)
	assert.Equal(t, public.ID, pub.Items[0].ID)

	_, err = env.clips.ListOwn(ctx, owner.ID, 0, 20)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.clips.ListPublic(ctx, 1, 101)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClipService_Update(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	other := env.register(t, "bob")
	clip := env.createClip(t, owner.ID, CreateClipInput{Tags: []string{"go", "draft"}})

	env.clock.Advance(time.Minute)
	updated, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{
		Title:      ptr("final"),
		Content:    ptr("print(2)"),
		AccessType: ptr(model.AccessTypePublic),
		TTL:        ptr(int64(120)),
		Tags:       &[]string{"go", "Release"},
	})
	require.NoError(t, err)
	assert.Equal(t, clip.ShortURL, updated.ShortURL)
	assert.Equal(t, "final", *updated.Title)
	assert.Equal(t, "print(2)", updated.Content)
	assert.Equal(t, model.AccessTypePublic, updated.AccessType)
	assert.True(t, updated.ExpiresAt.Equal(env.clock.Now().Add(2*time.Minute)))
	assert.Equal(t, model.TagList{"go", "release"}, updated.Tags)

	assert.Equal(t, int64(1), env.usage(t, owner.ID, "go"))
	assert.Equal(t, int64(0), env.usage(t, owner.ID, "draft"))
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "release"))

	cleared, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{TTL: ptr(int64(0))})
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)
	assert.Equal(t, model.TagList{"go", "release"}, cleared.Tags)

	_, err = env.clips.Update(ctx, other.ID, clip.ID, UpdateClipInput{Content: ptr("hijack")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.clips.Update(ctx, owner.ID, 987654321, UpdateClipInput{Content: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{ContentType: ptr(model.ContentType("binary"))})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClipService_Update_Encryption(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	clip := env.createClip(t, owner.ID, CreateClipInput{Content: "plain"})

	_, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{IsEncrypted: ptr(true)})
	assert.ErrorIs(t, err, ErrValidation)

	enc, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{
		Content:       ptr("c2VjcmV0"),
		IsEncrypted:   ptr(true),
		EncryptionKey: ptr("k1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "k1", *enc.EncryptionKey)

	// Content changes keep the stored key.
	kept, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{Content: ptr("bmV3")})
	require.NoError(t, err)
	require.NotNil(t, kept.EncryptionKey)
	assert.Equal(t, "k1", *kept.EncryptionKey)

	plain, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{Content: ptr("plain again"), IsEncrypted: ptr(false)})
	require.NoError(t, err)
	assert.Nil(t, plain.EncryptionKey)

	stored, err := env.store.Clips.ByID(ctx, clip.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EncryptionKey)
}

func TestClipService_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	other := env.register(t, "bob")
	clip := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic, Tags: []string{"go"}})

	assert.ErrorIs(t, env.clips.Delete(ctx, other.ID, clip.ID), ErrForbidden)

	require.NoError(t, env.clips.Delete(ctx, owner.ID, clip.ID))
	assert.Equal(t, int64(0), env.usage(t, owner.ID, "go"))

	_, err := env.clips.Get(ctx, clip.ShortURL, &owner.ID, AccessMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.clips.Delete(ctx, owner.ID, clip.ID), ErrNotFound)

	own, err := env.clips.ListOwn(ctx, owner.ID, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, own.Items)
}

func TestClipService_ReapExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	expired := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic, TTL: 60, Tags: []string{"go"}})
	_, err := env.clips.Get(ctx, expired.ShortURL, nil, AccessMeta{})
	require.NoError(t, err)
	alive := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic, TTL: 3600, Tags: []string{"go"}})

	env.clock.Advance(2 * time.Minute)
	n, err := env.clips.ReapExpired(ctx, env.clock.Now(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var rows int
	require.NoError(t, env.store.DB().Get(&rows, `SELECT COUNT(*) FROM clip_contents WHERE id = $1`, expired.ID))
	assert.Zero(t, rows)
	assert.Zero(t, env.accessLogCount(t, expired.ID))
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "go"))

	archived, ok := env.archive.objects[ArchivePath(expired)]
	require.True(t, ok)
	var doc model.Clip
	require.NoError(t, json.Unmarshal(archived, &doc))
	assert.Equal(t, expired.ID, doc.ID)
	assert.Equal(t, int64(1), doc.ViewCount)

	_, err = env.clips.Get(ctx, alive.ShortURL, nil, AccessMeta{})
	assert.NoError(t, err)
}

func TestClipService_ReapExpired_KeepsClipWhenArchiveFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	clip := env.createClip(t, owner.ID, CreateClipInput{TTL: 60})
	env.archive.err = assert.AnError

	env.clock.Advance(2 * time.Minute)
	n, err := env.clips.ReapExpired(ctx, env.clock.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.store.Clips.ByID(ctx, clip.ID)
	assert.NoError(t, err)
}

func TestClipService_PurgeDeleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")
	clip := env.createClip(t, owner.ID, CreateClipInput{AccessType: model.AccessTypePublic, Tags: []string{"go"}})
	_, err := env.clips.Get(ctx, clip.ShortURL, nil, AccessMeta{})
	require.NoError(t, err)
	require.NoError(t, env.clips.Delete(ctx, owner.ID, clip.ID))

	n, err := env.clips.PurgeDeleted(ctx, env.clock.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(2 * time.Hour)
	n, err = env.clips.PurgeDeleted(ctx, env.clock.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, env.accessLogCount(t, clip.ID))
	assert.Equal(t, int64(0), env.usage(t, owner.ID, "go"))
}

func TestClipService_Create_RetriesShortURLCollision(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	gen, calls := scripted("taken1", "taken1", "taken1", "fresh1")
	env.clips.shortCode = gen

	first := env.createClip(t, owner.ID, CreateClipInput{})
	assert.Equal(t, "taken1", first.ShortURL)

	second := env.createClip(t, owner.ID, CreateClipInput{Tags: []string{"go"}})
	assert.Equal(t, "fresh1", second.ShortURL)
	assert.Equal(t, 4, *calls)
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "go"))

	got, err := env.clips.Get(ctx, "fresh1", &owner.ID, AccessMeta{})
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestClipService_Create_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	gen, calls := scripted("taken1")
	env.clips.shortCode = gen
	env.createClip(t, owner.ID, CreateClipInput{})

	_, err := env.clips.Create(ctx, owner.ID, CreateClipInput{Content: "x", Tags: []string{"go"}})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 1+shortURLAttempts, *calls)
	assert.Equal(t, int64(0), env.usage(t, owner.ID, "go"))

	own, err := env.clips.ListOwn(ctx, owner.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), own.Total)
}

func TestClipService_Create_SkipsInvalidFrontMatterTags(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	source := "---\ntags: [\"this-front-matter-tag-is-longer-than-thirty-two-chars\", \"a,b\", Go]\n---\n# hi\n"
	clip, err := env.clips.Create(ctx, owner.ID, CreateClipInput{
		Content:     source,
		ContentType: model.ContentTypeMarkdown,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TagList{"go"}, clip.Tags)
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "go"))

	// Explicit tags are still validated strictly.
	_, err = env.clips.Create(ctx, owner.ID, CreateClipInput{
		Content:     source,
		ContentType: model.ContentTypeMarkdown,
		Tags:        []string{strings.Repeat("x", MaxTagLength+1)},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClipService_Update_ReplacesFrontMatterTags(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.register(t, "alice")

	clip := env.createClip(t, owner.ID, CreateClipInput{
		Content:     "---\ntags: [a, b]\n---\nfirst\n",
		ContentType: model.ContentTypeMarkdown,
		Tags:        []string{"keep"},
	})
	assert.ElementsMatch(t, model.TagList{"keep", "a", "b"}, clip.Tags)

	updated, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{
		Content: ptr("---\ntags: [b, c, \"bad,tag\"]\n---\nsecond\n"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, model.TagList{"keep", "b", "c"}, updated.Tags)
	assert.Equal(t, int64(0), env.usage(t, owner.ID, "a"))
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "b"))
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "c"))

	plain, err := env.clips.Update(ctx, owner.ID, clip.ID, UpdateClipInput{Content: ptr("no front matter")})
	require.NoError(t, err)
	assert.Equal(t, model.TagList{"keep"}, plain.Tags)
	assert.Equal(t, int64(0), env.usage(t, owner.ID, "b"))
	assert.Equal(t, int64(1), env.usage(t, owner.ID, "keep"))
}
