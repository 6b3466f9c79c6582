package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/williamokano/site_backuper/pkg/storage"
)

type Store struct {
	name     string
	basePath string
}

func init() {
	storage.RegisterStore("local", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(cfg)
	})
}

// New creates a new local filesystem store. Object keys map directly
// onto paths below the base directory.
func New(cfg storage.Config) (*Store, error) {
	path := cfg.BaseDir
	if v, ok := cfg.Options["path"].(string); ok && v != "" {
		path = v
	}
	if path == "" {
		return nil, fmt.Errorf("%w: missing required option: path", storage.ErrInvalidConfig)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Store{
		name:     cfg.Name,
		basePath: path,
	}, nil
}

func (s *Store) Name() string { return s.name }
func (s *Store) Type() string { return "local" }

// Put copies a local file into the store
func (s *Store) Put(ctx context.Context, sourcePath, key string) error {
	destFullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(destFullPath), 0755); err != nil {
		return storage.WrapError(s.name, "put", err)
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return storage.WrapError(s.name, "put", err)
	}
	defer source.Close()

	dest, err := os.Create(destFullPath)
	if err != nil {
		return storage.WrapError(s.name, "put", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		os.Remove(destFullPath) // Clean up partial file
		return storage.WrapError(s.name, "put", err)
	}

	return nil
}

// Get copies an object out of the store to destPath
func (s *Store) Get(ctx context.Context, key, destPath string) error {
	srcFullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	source, err := os.Open(srcFullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.WrapError(s.name, "get", storage.ErrNotFound)
		}
		return storage.WrapError(s.name, "get", err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return storage.WrapError(s.name, "get", err)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return storage.WrapError(s.name, "get", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		os.Remove(destPath)
		return storage.WrapError(s.name, "get", err)
	}

	return nil
}

// List returns all objects under prefix, sorted ascending by key
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo

	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil // File vanished mid-walk
		}

		objects = append(objects, storage.ObjectInfo{
			Key:     key,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, storage.WrapError(s.name, "list", err)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	return objects, nil
}

// Stat returns metadata about an object
func (s *Store) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(s.name, "stat", err)
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// BucketExists reports whether the base directory exists
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	info, err := os.Stat(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storage.WrapError(s.name, "bucket check", err)
	}
	return info.IsDir(), nil
}

// Close is a no-op for local stores
func (s *Store) Close() error {
	return nil
}
