package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/cache"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "What is RAG?", "retrieval augmented generation"))

	got, ok, err := c.Get(ctx, "What is RAG?")
	require.NoError(t, err)
	require.True(t, ok, "expected cache hit")
	assert.Equal(t, "retrieval augmented generation", got)

	_, ok, err = c.Get(ctx, "what is rag?")
	require.NoError(t, err)
	assert.False(t, ok, "keys are case sensitive")

	_, ok, err = c.Get(ctx, "What is RAG? ")
	require.NoError(t, err)
	assert.False(t, ok, "keys are whitespace sensitive")
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "q", "first"))
	require.NoError(t, c.Put(ctx, "q", "second"))

	got, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestCompression(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, WithCompression(true))

	long := strings.Repeat("Definition. Uses. Types. Pros. Cons. ", 200)
	require.NoError(t, c.Put(ctx, "long", long))
	require.NoError(t, c.Put(ctx, "short", "ok"))

	var compressed bool
	require.NoError(t, c.db.QueryRow(`SELECT compressed FROM answers WHERE query = ?`, "long").Scan(&compressed))
	assert.True(t, compressed, "long answers should be stored compressed")

	got, ok, err := c.Get(ctx, "long")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, long, got)

	got, ok, err = c.Get(ctx, "short")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ok", got)
}

func TestReopenDurability(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "durable.db")

	c, err := New(dbPath, WithCompression(true))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "q", strings.Repeat("answer ", 100)))
	require.NoError(t, c.Close())

	// Compression switched off on reopen must still read old entries.
	c2, err := New(dbPath)
	require.NoError(t, err)
	defer c2.Close()

	got, ok, err := c2.Get(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("answer ", 100), got)
}

func TestContains(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	ok, err := c.Contains(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "q", "a"))

	ok, err = c.Contains(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Hits+stats.Misses, "Contains must not count as a lookup")
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, WithCompression(true))

	_, ok, err := c.Inspect(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	long := strings.Repeat("Pros and cons. ", 100)
	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, c.Put(ctx, "q", long))

	entry, ok, err := c.Inspect(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q", entry.Query)
	assert.Equal(t, long, entry.Answer)
	assert.True(t, entry.CreatedAt.After(before))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Hits+stats.Misses, "Inspect must not count as a lookup")
}

func TestTTLExpiration(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, WithTTL(time.Millisecond))

	require.NoError(t, c.Put(ctx, "q", "a"))
	time.Sleep(10 * time.Millisecond)

	_, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok, "expected miss after TTL expiration")

	ok, err = c.Contains(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Inspect(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.Clear(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "h1", "data"))
	_, _, _ = c.Get(ctx, "h1") // hit
	_, _, _ = c.Get(ctx, "h2") // miss

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "h1", "data"))
	require.NoError(t, c.Put(ctx, "h2", "data"))

	n, err := c.Clear(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing expires without a TTL")

	n, err = c.Clear(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "closed.db")
	c, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, c.db.Close())
	t.Cleanup(c.decoder.Close)

	_, ok, err := c.Get(ctx, "q")
	assert.False(t, ok)
	assert.ErrorIs(t, err, cache.ErrStorageUnavailable)

	_, err = c.Contains(ctx, "q")
	assert.ErrorIs(t, err, cache.ErrStorageUnavailable)

	err = c.Put(ctx, "q", "a")
	assert.ErrorIs(t, err, cache.ErrStorageUnavailable)
}

func TestCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, err := c.db.Exec(`INSERT INTO answers (query, answer, compressed) VALUES (?, ?, 1)`, "q", []byte("not zstd"))
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "q")
	assert.False(t, ok)
	assert.ErrorIs(t, err, cache.ErrStorageUnavailable)
}
