package store

import (
	"context"
	"fmt"
	"os"
	"sort"
)

// Persistence backends.
const (
	// BackendFile writes one JSON file per tenant. Default.
	BackendFile = "file"
	// BackendSQLite writes one row per tenant into a SQLite database.
	BackendSQLite = "sqlite"
)

// NewPersister creates a persister for backend. Supported: "file" (default, rooted at
// snapshotDir) and "sqlite" (database at sqlitePath).
func NewPersister(backend, snapshotDir, sqlitePath string) (Persister, error) {
	switch backend {
	case BackendFile, "":
		return NewFilePersister(snapshotDir)
	case BackendSQLite:
		return NewSQLitePersister(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: file, sqlite)", backend)
	}
}

// ListTenants returns tenant ids with persisted state, sorted. Backends that cannot
// enumerate tenants return nil.
func ListTenants(ctx context.Context, p Persister) ([]string, error) {
	switch b := p.(type) {
	case *FilePersister:
		entries, err := os.ReadDir(b.root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		var ids []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, err := os.Stat(b.Path(e.Name())); err == nil {
				ids = append(ids, e.Name())
			}
		}
		sort.Strings(ids)
		return ids, nil
	case *SQLitePersister:
		return b.Tenants(ctx)
	}
	return nil, nil
}
