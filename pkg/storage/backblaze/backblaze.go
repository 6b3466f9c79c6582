package backblaze

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kurin/blazer/b2"

	"github.com/williamokano/site_backuper/pkg/storage"
)

type Store struct {
	name   string
	client *b2.Client
	bucket *b2.Bucket
}

func init() {
	storage.RegisterStore("backblaze", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(ctx, cfg)
	})
}

// New creates a new Backblaze B2 store
func New(ctx context.Context, cfg storage.Config) (*Store, error) {
	b2Cfg, err := parseConfig(cfg.Options)
	if err != nil {
		return nil, err
	}

	client, err := b2.NewClient(ctx, b2Cfg.AccountID, b2Cfg.ApplicationKey)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", storage.ErrAuthFailed)
	}

	bucket, err := client.Bucket(ctx, b2Cfg.BucketName)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "get bucket", err)
	}

	return &Store{
		name:   cfg.Name,
		client: client,
		bucket: bucket,
	}, nil
}

func (s *Store) Name() string { return s.name }
func (s *Store) Type() string { return "backblaze" }

// Put uploads a local file to B2
func (s *Store) Put(ctx context.Context, sourcePath, key string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		file, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer file.Close()

		obj := s.bucket.Object(key)
		writer := obj.NewWriter(ctx)

		if _, err := io.Copy(writer, file); err != nil {
			writer.Close()
			return storage.WrapError(s.name, "upload", err)
		}

		if err := writer.Close(); err != nil {
			return storage.WrapError(s.name, "upload", err)
		}

		return nil
	})
}

// Get downloads an object to a local file
func (s *Store) Get(ctx context.Context, key, destPath string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return storage.WrapError(s.name, "download", err)
		}

		obj := s.bucket.Object(key)
		reader := obj.NewReader(ctx)
		defer reader.Close()

		file, err := os.Create(destPath)
		if err != nil {
			return storage.WrapError(s.name, "download", err)
		}
		defer file.Close()

		if _, err := io.Copy(file, reader); err != nil {
			os.Remove(destPath)
			if b2.IsNotExist(err) {
				return storage.WrapError(s.name, "download", storage.ErrNotFound)
			}
			return storage.WrapError(s.name, "download", err)
		}

		return nil
	})
}

// List returns objects under prefix, sorted ascending by key
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo

	iter := s.bucket.List(ctx, b2.ListPrefix(prefix))
	for iter.Next() {
		obj := iter.Object()

		// Folder markers end in "/"; zero-byte site files are real
		// content and must be listed
		if strings.HasSuffix(obj.Name(), "/") {
			continue
		}

		attrs, err := obj.Attrs(ctx)
		if err != nil {
			continue
		}

		objects = append(objects, storage.ObjectInfo{
			Key:     obj.Name(),
			Size:    attrs.Size,
			ModTime: attrs.UploadTimestamp,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, storage.WrapError(s.name, "list", err)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	return objects, nil
}

// Stat returns object metadata
func (s *Store) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	obj := s.bucket.Object(key)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if b2.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(s.name, "stat", err)
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    attrs.Size,
		ModTime: attrs.UploadTimestamp,
	}, nil
}

// BucketExists reports whether the bucket is reachable
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	iter := s.bucket.List(ctx, b2.ListPageSize(1))
	iter.Next()
	if err := iter.Err(); err != nil {
		if b2.IsNotExist(err) {
			return false, nil
		}
		return false, storage.WrapError(s.name, "bucket check", err)
	}
	return true, nil
}

// Close releases resources
func (s *Store) Close() error {
	return nil
}

func parseConfig(options map[string]interface{}) (*Config, error) {
	cfg := &Config{}

	if v, ok := options["account_id"].(string); ok {
		cfg.AccountID = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: account_id", storage.ErrInvalidConfig)
	}
	if v, ok := options["application_key"].(string); ok {
		cfg.ApplicationKey = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: application_key", storage.ErrInvalidConfig)
	}
	if v, ok := options["bucket_name"].(string); ok {
		cfg.BucketName = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: bucket_name", storage.ErrInvalidConfig)
	}

	return cfg, nil
}
