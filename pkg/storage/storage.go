package storage

import (
	"context"
	"time"
)

// Store represents an object store holding one site snapshot under a
// key prefix. Implementations transfer whole files: uploads read from
// the local filesystem, downloads write to it.
type Store interface {
	// Name returns a human-readable name for this store (e.g., "b2_offsite")
	Name() string

	// Type returns the store type (local, s3, backblaze, ssh)
	Type() string

	// Put uploads a local file to the given object key. Uploading the
	// same bytes to the same key twice is idempotent.
	Put(ctx context.Context, sourcePath string, key string) error

	// Get downloads an object to a local file, truncating any
	// existing content at destPath.
	Get(ctx context.Context, key string, destPath string) error

	// List returns all objects whose key starts with prefix,
	// sorted ascending by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Stat returns metadata about a single object, ErrNotFound if absent.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// BucketExists reports whether the configured bucket (or base
	// directory) is reachable.
	BucketExists(ctx context.Context) (bool, error)

	// Close releases resources (connections, sessions)
	Close() error
}

// ObjectInfo represents metadata about a stored object
type ObjectInfo struct {
	Key     string    // Full object key
	Size    int64     // Size in bytes
	ModTime time.Time // Last modification time
}

// Config represents storage destination configuration
type Config struct {
	Name    string                 `json:"name"`     // User-friendly name (e.g., "b2_primary")
	Type    string                 `json:"type"`     // Store type: local, s3, backblaze, ssh
	Enabled bool                   `json:"enabled"`  // Whether this destination is active
	BaseDir string                 `json:"base_dir"` // Base directory (local stores only)
	Options map[string]interface{} `json:"options"`  // Store-specific options
}
