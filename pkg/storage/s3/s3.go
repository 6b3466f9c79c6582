package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/williamokano/site_backuper/pkg/storage"
)

type Store struct {
	name       string
	client     *s3.Client
	bucket     string
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

func init() {
	storage.RegisterStore("s3", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(ctx, cfg)
	})
}

// New creates a new S3 store
func New(ctx context.Context, cfg storage.Config) (*Store, error) {
	s3Cfg, err := parseConfig(cfg.Options)
	if err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s3Cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3Cfg.AccessKeyID,
				s3Cfg.SecretAccessKey,
				"",
			),
		),
	)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Cfg.Endpoint)
		}
		o.UsePathStyle = s3Cfg.ForcePathStyle
	})

	// Connection test; missing bucket is a configuration problem,
	// not something retries can fix
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s3Cfg.Bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, storage.WrapError(cfg.Name, "connection test", storage.ErrInvalidConfig)
		}
		return nil, storage.WrapError(cfg.Name, "connection test", storage.ErrConnFailed)
	}

	return &Store{
		name:       cfg.Name,
		client:     client,
		bucket:     s3Cfg.Bucket,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

func (s *Store) Name() string { return s.name }
func (s *Store) Type() string { return "s3" }

// Put uploads a local file to S3
func (s *Store) Put(ctx context.Context, sourcePath, key string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		file, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   file,
		})
		if err != nil {
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

		file, err := os.Create(destPath)
		if err != nil {
			return storage.WrapError(s.name, "download", err)
		}
		defer file.Close()

		_, err = s.downloader.Download(ctx, file, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			os.Remove(destPath)
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &noSuchKey) {
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

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storage.WrapError(s.name, "list", err)
		}

		for _, obj := range page.Contents {
			// Folder markers end in "/"; zero-byte site files are
			// real content and must be listed
			if strings.HasSuffix(*obj.Key, "/") {
				continue
			}

			objects = append(objects, storage.ObjectInfo{
				Key:     *obj.Key,
				Size:    *obj.Size,
				ModTime: *obj.LastModified,
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	return objects, nil
}

// Stat returns metadata about an object
func (s *Store) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(s.name, "stat", err)
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    *result.ContentLength,
		ModTime: *result.LastModified,
	}, nil
}

// BucketExists reports whether the bucket is reachable
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, storage.WrapError(s.name, "bucket check", err)
	}
	return true, nil
}

// Close is a no-op for S3
func (s *Store) Close() error {
	return nil
}

func parseConfig(options map[string]interface{}) (*Config, error) {
	cfg := &Config{}

	if v, ok := options["endpoint"].(string); ok {
		cfg.Endpoint = v
	}
	if v, ok := options["region"].(string); ok {
		cfg.Region = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: region", storage.ErrInvalidConfig)
	}
	if v, ok := options["bucket"].(string); ok {
		cfg.Bucket = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: bucket", storage.ErrInvalidConfig)
	}
	if v, ok := options["access_key_id"].(string); ok {
		cfg.AccessKeyID = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: access_key_id", storage.ErrInvalidConfig)
	}
	if v, ok := options["secret_access_key"].(string); ok {
		cfg.SecretAccessKey = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: secret_access_key", storage.ErrInvalidConfig)
	}
	if v, ok := options["force_path_style"].(bool); ok {
		cfg.ForcePathStyle = v
	}

	return cfg, nil
}
