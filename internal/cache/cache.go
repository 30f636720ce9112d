// Package cache provides a durable key/value cache for external-service
// responses. It is strictly best-effort: losing every entry only increases
// external API spend, never correctness.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed key/value store with per-read TTL evaluation.
// Concurrent writers to the same key race; last write wins.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and ensures the schema.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get unmarshals the cached value for key into out and returns true when a
// fresh entry exists. Expired entries are deleted on read and treated as
// absent. A miss is never an error.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, out any) (bool, error) {
	var value string
	var createdAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, created_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "cache: get")
	}

	if time.Since(time.Unix(createdAt, 0)) > ttl {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			zap.L().Warn("cache: delete expired entry", zap.String("key", key), zap.Error(err))
		}
		return false, nil
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, eris.Wrap(err, "cache: unmarshal value")
	}
	return true, nil
}

// Set stores value under key with the current time. Values must be plain
// structured data (maps, slices, strings, numbers) so they round-trip JSON.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return eris.Wrap(err, "cache: marshal value")
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`,
		key, string(data), time.Now().Unix(),
	)
	return eris.Wrap(err, "cache: set")
}

// Delete removes the entry for key. Deleting a missing key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return eris.Wrap(err, "cache: delete")
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return eris.Wrap(err, "cache: clear")
}
