// Package blob provides content-addressed storage for raw uploads.
//
// Blobs are keyed by the MD5 hex of their content with a two-character
// directory fan-out ("ab/abcdef..."), so writing the same content twice
// lands on the same key and duplicate writes are no-ops.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound means no blob exists under the given key.
	ErrNotFound = errors.New("blob not found")

	// ErrClosed means the store has been closed.
	ErrClosed = errors.New("blob store is closed")
)

// Store persists raw upload bytes outside the database.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Write stores the content under its hash and returns the storage
	// key. Writing a hash that already exists is a no-op.
	Write(ctx context.Context, hash string, r io.Reader) (key string, size int64, err error)

	// Open returns a reader for the blob. The caller closes it.
	// Returns ErrNotFound if no blob exists under the key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error

	// Path returns the locator handed to external workers: an absolute
	// filesystem path or an s3:// URI depending on the backend.
	Path(key string) string

	// Close releases backend resources.
	Close() error
}

// BackendType selects the blob storage backend.
type BackendType string

const (
	// BackendFilesystem stores blobs under a local directory (default).
	BackendFilesystem BackendType = "filesystem"

	// BackendS3 stores blobs in an S3-compatible object store.
	BackendS3 BackendType = "s3"
)

// Config contains blob storage configuration.
type Config struct {
	Backend    BackendType      `mapstructure:"backend" yaml:"backend"`
	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem,omitempty"`
	S3         S3Config         `mapstructure:"s3" yaml:"s3,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFilesystem
	}
	c.Filesystem.ApplyDefaults()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFilesystem:
		if c.Filesystem.Path == "" {
			return fmt.Errorf("filesystem path is required")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unsupported blob backend: %s", c.Backend)
	}
	return nil
}

// New creates a blob store for the configured backend.
func New(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blob configuration: %w", err)
	}

	switch config.Backend {
	case BackendFilesystem:
		return NewFilesystemStore(config.Filesystem)
	case BackendS3:
		return NewS3Store(ctx, config.S3)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", config.Backend)
	}
}

// Key returns the fan-out storage key for a content hash.
func Key(hash string) string {
	if len(hash) < 2 {
		return hash
	}
	return hash[:2] + "/" + hash
}
