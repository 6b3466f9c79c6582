//go:build integration
// +build integration

package backup_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/williamokano/site_backuper/pkg/backup"
	"github.com/williamokano/site_backuper/pkg/restore"
	"github.com/williamokano/site_backuper/pkg/snapshot"
	"github.com/williamokano/site_backuper/pkg/storage"
)

// S3Credentials holds S3 access credentials
type S3Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

func TestBackupRestoreS3Integration(t *testing.T) {
	// Skip in short mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Run("backup_and_restore_round_trip", func(t *testing.T) {
		ctx := context.Background()

		// Setup LocalStack (S3) container
		s3Container, s3Endpoint, s3Creds, err := setupLocalStackContainer(ctx, t)
		if err != nil {
			t.Fatalf("Failed to start LocalStack: %v", err)
		}
		defer s3Container.Terminate(ctx)

		// Create S3 bucket using AWS SDK
		if err := createS3Bucket(ctx, s3Endpoint, s3Creds, "site-backups"); err != nil {
			t.Fatalf("Failed to create S3 bucket: %v", err)
		}

		// Build a small site tree to back up
		siteDir := t.TempDir()
		files := map[string]string{
			"index.html":        "<html><body>home</body></html>",
			"css/styles.css":    "body { margin: 0; }",
			"data/content.json": `{"title":"hello"}`,
			".nojekyll":         "",
		}
		for rel, content := range files {
			full := filepath.Join(siteDir, filepath.FromSlash(rel))
			require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
			require.NoError(t, os.WriteFile(full, []byte(content), 0644))
		}

		// Create the S3 store through the factory
		factory := storage.NewFactory()
		store, err := factory.Create(ctx, storage.Config{
			Name:    "test_s3",
			Type:    "s3",
			Enabled: true,
			Options: map[string]interface{}{
				"endpoint":          s3Endpoint,
				"region":            "us-east-1",
				"bucket":            "site-backups",
				"access_key_id":     s3Creds.AccessKeyID,
				"secret_access_key": s3Creds.SecretAccessKey,
				"force_path_style":  true,
			},
		})
		require.NoError(t, err, "Failed to create S3 store")
		defer store.Close()

		logger := zerolog.Nop()

		// Run backup
		summary, err := backup.Run(ctx, store, siteDir, "site", 4, logger)
		require.NoError(t, err)
		assert.Equal(t, len(files), summary.FileCount)

		// Verify every object landed under the prefix
		objects, err := store.List(ctx, "site/")
		require.NoError(t, err)
		require.Len(t, objects, len(files))

		// Restore into a fresh directory and compare manifests
		restoreDir := t.TempDir()
		restoreSummary, err := restore.Run(ctx, store, restoreDir, "site", restore.Options{Workers: 4}, logger)
		require.NoError(t, err)
		assert.Equal(t, len(files), restoreSummary.FileCount)

		original, err := snapshot.Build(siteDir)
		require.NoError(t, err)
		restored, err := snapshot.Build(restoreDir)
		require.NoError(t, err)
		assert.True(t, original.Equal(restored), "Restored tree must match the backed up tree")
	})
}

// setupLocalStackContainer starts a LocalStack container with S3 service
func setupLocalStackContainer(ctx context.Context, t *testing.T) (*localstack.LocalStackContainer, string, S3Credentials, error) {
	lsContainer, err := localstack.RunContainer(ctx,
		testcontainers.WithImage("localstack/localstack:3.0"),
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "s3",
			"DEBUG":    "1",
		}),
	)
	if err != nil {
		return nil, "", S3Credentials{}, err
	}

	// Get S3 endpoint from container
	mappedPort, err := lsContainer.MappedPort(ctx, "4566/tcp")
	if err != nil {
		lsContainer.Terminate(ctx)
		return nil, "", S3Credentials{}, err
	}

	host, err := lsContainer.Host(ctx)
	if err != nil {
		lsContainer.Terminate(ctx)
		return nil, "", S3Credentials{}, err
	}

	s3Endpoint := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	// LocalStack default credentials
	creds := S3Credentials{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}

	return lsContainer, s3Endpoint, creds, nil
}

// createS3Bucket creates an S3 bucket in LocalStack
func createS3Bucket(ctx context.Context, endpoint string, creds S3Credentials, bucketName string) error {
	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				creds.AccessKeyID,
				creds.SecretAccessKey,
				"",
			),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
