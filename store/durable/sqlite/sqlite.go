// Package sqlite implements the durable cache tier as a single-file SQLite
// database with one row per key.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/fhirtools/fhirpath-ls/store/cache"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entry (
	key TEXT PRIMARY KEY,
	entry TEXT NOT NULL,
	updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// Store is a SQLite-backed durable cache store.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the cache database at dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite db with dsn %s", dsn)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create cache_entry table")
	}
	return &Store{db: db}, nil
}

// Get reads the row for key. A missing row is (nil, nil); a corrupt one is
// an error the engine treats as a miss.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT entry FROM cache_entry WHERE key = ?", key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache row for %s", key)
	}
	var entry cache.Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, errors.Wrapf(err, "corrupt cache row for %s", key)
	}
	return &entry, nil
}

// Set serializes the entry and upserts its row.
func (s *Store) Set(ctx context.Context, key string, entry *cache.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize cache row for %s", key)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entry (key, entry, updated_ts)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT (key) DO UPDATE SET entry = excluded.entry, updated_ts = excluded.updated_ts
	`, key, string(raw))
	return errors.Wrapf(err, "failed to write cache row for %s", key)
}

// Delete removes the row for key if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache_entry WHERE key = ?", key)
	return errors.Wrapf(err, "failed to delete cache row for %s", key)
}

// Keys enumerates all cached keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache_entry")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cache keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "failed to scan cache key")
		}
		keys = append(keys, key)
	}
	return keys, errors.Wrap(rows.Err(), "failed to iterate cache keys")
}

// Clear removes every row.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache_entry")
	return errors.Wrap(err, "failed to clear cache_entry table")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ cache.DurableStore = (*Store)(nil)
