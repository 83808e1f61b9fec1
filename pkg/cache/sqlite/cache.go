package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/models"
)

// Cache is an exact-match answer store backed by SQLite.
type Cache struct {
	db       *sql.DB
	ttl      time.Duration
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	hits     atomic.Int64
	misses   atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries older than ttl. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCompression stores answers zstd-compressed.
func WithCompression(enabled bool) Option {
	return func(c *Cache) { c.compress = enabled }
}

const createAnswersTable = `
CREATE TABLE IF NOT EXISTS answers (
	query TEXT NOT NULL PRIMARY KEY,
	answer BLOB NOT NULL,
	compressed INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// New opens (creating if needed) the answer store at dbPath.
func New(dbPath string, opts ...Option) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createAnswersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	c := &Cache{db: db}
	for _, opt := range opts {
		opt(c)
	}

	// The decoder is always needed: entries written with compression on stay
	// readable after it is switched off.
	if c.decoder, err = zstd.NewReader(nil); err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if c.compress {
		if c.encoder, err = zstd.NewWriter(nil); err != nil {
			c.decoder.Close()
			db.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}

	return c, nil
}

// Get returns the stored answer for key. A missing or expired entry is a
// miss; any storage failure is reported as cache.ErrStorageUnavailable.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		data       []byte
		compressed bool
		createdAt  time.Time
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT answer, compressed, created_at FROM answers WHERE query = ?`,
		key,
	).Scan(&data, &compressed, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: cache get: %v", cache.ErrStorageUnavailable, err)
	}

	if c.ttl > 0 && time.Since(createdAt) > c.ttl {
		c.misses.Add(1)
		return "", false, nil
	}

	if compressed {
		data, err = c.decoder.DecodeAll(data, nil)
		if err != nil {
			return "", false, fmt.Errorf("%w: corrupt entry: %v", cache.ErrStorageUnavailable, err)
		}
	}

	c.hits.Add(1)
	return string(data), true, nil
}

// Inspect returns the live entry for key without counting a lookup.
func (c *Cache) Inspect(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var (
		data       []byte
		compressed bool
		createdAt  time.Time
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT answer, compressed, created_at FROM answers WHERE query = ?`,
		key,
	).Scan(&data, &compressed, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("%w: cache inspect: %v", cache.ErrStorageUnavailable, err)
	}
	if c.ttl > 0 && time.Since(createdAt) > c.ttl {
		return models.CacheEntry{}, false, nil
	}
	if compressed {
		if data, err = c.decoder.DecodeAll(data, nil); err != nil {
			return models.CacheEntry{}, false, fmt.Errorf("%w: corrupt entry: %v", cache.ErrStorageUnavailable, err)
		}
	}
	return models.CacheEntry{Query: key, Answer: string(data), CreatedAt: createdAt}, true, nil
}

// Contains reports whether a live entry exists for key without reading the answer.
func (c *Cache) Contains(ctx context.Context, key string) (bool, error) {
	var createdAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT created_at FROM answers WHERE query = ?`,
		key,
	).Scan(&createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: cache contains: %v", cache.ErrStorageUnavailable, err)
	}
	if c.ttl > 0 && time.Since(createdAt) > c.ttl {
		return false, nil
	}
	return true, nil
}

// Put stores an answer, replacing any previous one for key.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	data := []byte(value)
	compressed := false
	if c.encoder != nil {
		if enc := c.encoder.EncodeAll(data, nil); len(enc) < len(data) {
			data = enc
			compressed = true
		}
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO answers (query, answer, compressed, created_at) VALUES (?, ?, ?, ?)`,
		key, data, compressed, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: cache put: %v", cache.ErrStorageUnavailable, err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes entries. If expiredOnly is true, only entries older than the
// TTL are removed; with no TTL nothing is expired.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case !expiredOnly:
		res, err = c.db.ExecContext(ctx, `DELETE FROM answers`)
	case c.ttl > 0:
		res, err = c.db.ExecContext(ctx, `DELETE FROM answers WHERE created_at < ?`, time.Now().UTC().Add(-c.ttl))
	default:
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	c.decoder.Close()
	return c.db.Close()
}
