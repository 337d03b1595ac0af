// Package hashstore persists the last observed content fingerprint.
//
// Two backends are provided: a plain text file holding the hex digest
// (compatible with a hand-inspectable website_hash.txt) and a single-row
// SQLite table. Both hold exactly one value and overwrite it on Save.
// Load returns the zero Fingerprint when nothing has been stored yet.
package hashstore

import (
	"context"
	"fmt"

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// Store is implemented by every backend.
type Store interface {
	Load(ctx context.Context) (snapshot.Fingerprint, error)
	Save(ctx context.Context, fp snapshot.Fingerprint) error
	Close() error
}

// Open returns the backend named by driver ("file" or "sqlite") rooted at
// path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFile(path), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("hashstore: unknown driver %q", driver)
	}
}
