// Package durable selects the durable cache backend based on the profile,
// the same way the database driver is selected in comparable servers. Two
// backends are supported: a file store (one JSON record per key, the
// default) and a SQLite store (one row per key, single-file database).
package durable

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fhirtools/fhirpath-ls/internal/profile"
	"github.com/fhirtools/fhirpath-ls/store/cache"
	"github.com/fhirtools/fhirpath-ls/store/durable/file"
	"github.com/fhirtools/fhirpath-ls/store/durable/sqlite"
)

// NewStore creates the durable cache store named by the profile driver.
func NewStore(p *profile.Profile) (cache.DurableStore, error) {
	var store cache.DurableStore
	var err error

	switch p.Driver {
	case "file":
		store, err = file.NewStore(filepath.Join(p.Data, "typecache"))
	case "sqlite":
		store, err = sqlite.NewStore(p.DSN)
	default:
		return nil, errors.Errorf("unknown cache driver %q: only 'file' and 'sqlite' are supported", p.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create durable cache store")
	}
	return store, nil
}
