package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FilesystemConfig holds configuration for the filesystem blob store.
type FilesystemConfig struct {
	// Path is the root directory for blob storage.
	Path string `mapstructure:"path" yaml:"path"`

	// DirMode is the permission mode for created directories.
	DirMode os.FileMode `mapstructure:"-" yaml:"-"`

	// FileMode is the permission mode for created files.
	FileMode os.FileMode `mapstructure:"-" yaml:"-"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *FilesystemConfig) ApplyDefaults() {
	if c.DirMode == 0 {
		c.DirMode = 0755
	}
	if c.FileMode == 0 {
		c.FileMode = 0644
	}
}

// FilesystemStore stores blobs as files under a base directory.
type FilesystemStore struct {
	mu       sync.RWMutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   bool
}

// NewFilesystemStore creates a filesystem blob store rooted at the
// configured path, creating the directory if needed.
func NewFilesystemStore(cfg FilesystemConfig) (*FilesystemStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("base path is required")
	}
	cfg.ApplyDefaults()

	if err := os.MkdirAll(cfg.Path, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path is not a directory")
	}

	return &FilesystemStore{
		basePath: cfg.Path,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// blobPath returns the full filesystem path for a storage key.
func (s *FilesystemStore) blobPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Write stores the content under its hash. An existing blob under the
// same key is left untouched: identical hash means identical bytes.
func (s *FilesystemStore) Write(ctx context.Context, hash string, r io.Reader) (string, int64, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return "", 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	key := Key(hash)
	path := s.blobPath(key)

	if info, err := os.Stat(path); err == nil {
		return key, info.Size(), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return "", 0, err
	}

	// Write to a temporary file first, then rename for atomicity.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}
	if err := os.Chmod(tmpPath, s.fileMode); err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}
	return key, size, nil
}

// Open returns a reader for the blob.
func (s *FilesystemStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a blob. Missing blobs are ignored.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.blobPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the absolute filesystem path for a key. Workers on the
// same host read uploads directly from here.
func (s *FilesystemStore) Path(key string) string {
	return s.blobPath(key)
}

// Close marks the store closed. Blob files stay on disk.
func (s *FilesystemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
