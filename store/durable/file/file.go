// Package file implements the durable cache tier as one JSON record per key
// under a directory. Records carry the original key alongside the entry so
// the store can be enumerated even though file names are sanitized.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fhirtools/fhirpath-ls/store/cache"
)

const recordExt = ".json"

// maxNameLen bounds the readable part of a record file name. The hash
// suffix keeps truncated names collision-free.
const maxNameLen = 64

// Store is a file-backed durable cache store.
type Store struct {
	dir string
}

// record is the on-disk envelope for one cache entry.
type record struct {
	Key   string       `json:"key"`
	Entry *cache.Entry `json:"entry"`
}

// NewStore creates a file store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrapf(err, "unable to create cache directory %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Get reads the record for key. A missing record is (nil, nil); a corrupt
// one is an error the engine treats as a miss.
func (s *Store) Get(_ context.Context, key string) (*cache.Entry, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache record for %s", key)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrapf(err, "corrupt cache record for %s", key)
	}
	if rec.Entry == nil {
		return nil, errors.Errorf("cache record for %s has no entry", key)
	}
	return rec.Entry, nil
}

// Set serializes the entry and writes its record. The write goes through a
// uniquely named temp file and a rename so readers never observe a partial
// record.
func (s *Store) Set(_ context.Context, key string, entry *cache.Entry) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return errors.Wrapf(err, "unable to create cache directory %s", s.dir)
	}
	raw, err := json.Marshal(record{Key: key, Entry: entry})
	if err != nil {
		return errors.Wrapf(err, "failed to serialize cache record for %s", key)
	}

	target := s.path(key)
	tmp := target + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, raw, 0640); err != nil {
		return errors.Wrapf(err, "failed to write cache record for %s", key)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "failed to publish cache record for %s", key)
	}
	return nil
}

// Delete removes the record for key if present.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete cache record for %s", key)
	}
	return nil
}

// Keys enumerates the original keys of all readable records. Unreadable or
// corrupt records are skipped.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list cache directory %s", s.dir)
	}

	var keys []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), recordExt) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Key == "" {
			continue
		}
		keys = append(keys, rec.Key)
	}
	return keys, nil
}

// Clear removes every record under the store's directory.
func (s *Store) Clear(_ context.Context) error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to list cache directory %s", s.dir)
	}
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), recordExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, de.Name())); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove cache record %s", de.Name())
		}
	}
	return nil
}

// Close implements cache.DurableStore. The file store holds no resources.
func (s *Store) Close() error { return nil }

// path maps a cache key to its record location: a sanitized, truncated form
// of the key plus a short content hash of the full key.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+recordExt)
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	sum := sha256.Sum256([]byte(key))
	return name + "-" + hex.EncodeToString(sum[:])[:12]
}

var _ cache.DurableStore = (*Store)(nil)
