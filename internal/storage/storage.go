// Package storage implements the persistence collaborator: key-value string
// storage with get/set-by-key semantics. The store persists the entire event
// collection under one key and the theme preference under another, so the
// backend never needs to understand the payload.
package storage

import (
	"fmt"
)

// KV is the narrow interface the event store persists through.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, overwriting any previous value.
	Set(key, value string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open constructs the configured backend rooted at dataDir.
func Open(backend, dataDir string) (KV, error) {
	switch backend {
	case BackendFile, "":
		return NewFileKV(dataDir)
	case BackendSQLite:
		return NewSQLiteKV(dataDir)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
