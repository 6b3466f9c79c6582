package backup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/site_backuper/pkg/backup"
	"github.com/williamokano/site_backuper/pkg/snapshot"
	"github.com/williamokano/site_backuper/pkg/storage"
	"github.com/williamokano/site_backuper/pkg/storage/local"
	"github.com/williamokano/site_backuper/pkg/storage/mocks"
)

func writeSiteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestRun_UploadsEveryFile(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", "<html></html>")
	writeSiteFile(t, siteDir, "css/styles.css", "body {}")

	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")
	store.On("Put", mock.Anything, filepath.Join(siteDir, "index.html"), "site/index.html").Return(nil)
	store.On("Put", mock.Anything, filepath.Join(siteDir, "css", "styles.css"), "site/css/styles.css").Return(nil)
	store.On("Stat", mock.Anything, "site/index.html").
		Return(&storage.ObjectInfo{Key: "site/index.html", Size: int64(len("<html></html>"))}, nil)
	store.On("Stat", mock.Anything, "site/css/styles.css").
		Return(&storage.ObjectInfo{Key: "site/css/styles.css", Size: int64(len("body {}"))}, nil)

	summary, err := backup.Run(context.Background(), store, siteDir, "site", 4, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FileCount)
	assert.Equal(t, int64(len("<html></html>")+len("body {}")), summary.Bytes)
}

func TestRun_SingleFailureFailsWholeRun(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "a.html", "a")
	writeSiteFile(t, siteDir, "b.html", "b")

	uploadErr := storage.WrapError("mock", "put", storage.ErrConnFailed)

	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")
	store.On("Put", mock.Anything, mock.Anything, "site/a.html").Return(uploadErr)
	store.On("Put", mock.Anything, mock.Anything, "site/b.html").Return(nil).Maybe()
	store.On("Stat", mock.Anything, "site/b.html").
		Return(&storage.ObjectInfo{Key: "site/b.html", Size: 1}, nil).Maybe()

	summary, err := backup.Run(context.Background(), store, siteDir, "site", 1, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConnFailed)
	assert.Contains(t, err.Error(), "a.html")
	assert.Zero(t, summary.FileCount)
}

func TestRun_EmptyDirectoryIsSuccessWithZeroFiles(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")

	summary, err := backup.Run(context.Background(), store, t.TempDir(), "site", 4, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, summary.FileCount)
	assert.Zero(t, summary.Bytes)
}

func TestRun_MissingSourceFails(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")

	_, err := backup.Run(context.Background(), store, filepath.Join(t.TempDir(), "gone"), "site", 4, zerolog.Nop())
	assert.ErrorIs(t, err, snapshot.ErrSourceMissing)
}

func TestRun_Idempotent(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", "<html></html>")
	writeSiteFile(t, siteDir, "data/content.json", `{"k":"v"}`)

	bucketDir := t.TempDir()
	store, err := local.New(storage.Config{Name: "bucket", Type: "local", Enabled: true, BaseDir: bucketDir})
	require.NoError(t, err)

	ctx := context.Background()

	first, err := backup.Run(ctx, store, siteDir, "site", 4, zerolog.Nop())
	require.NoError(t, err)

	firstManifest, err := snapshot.Build(bucketDir)
	require.NoError(t, err)

	second, err := backup.Run(ctx, store, siteDir, "site", 4, zerolog.Nop())
	require.NoError(t, err)

	secondManifest, err := snapshot.Build(bucketDir)
	require.NoError(t, err)

	assert.Equal(t, first.FileCount, second.FileCount)
	assert.True(t, firstManifest.Equal(secondManifest), "repeated backup must leave the store byte-identical")
}

func TestRun_CancelledContext(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", "<html></html>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")
	store.On("Put", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, sourcePath, key string) error {
			return ctx.Err()
		}).Maybe()

	_, err := backup.Run(ctx, store, siteDir, "site", 4, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SizeMismatchFailsVerification(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", "<html></html>")

	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")
	store.On("Put", mock.Anything, mock.Anything, "site/index.html").Return(nil)
	store.On("Stat", mock.Anything, "site/index.html").
		Return(&storage.ObjectInfo{Key: "site/index.html", Size: 3}, nil)

	_, err := backup.Run(context.Background(), store, siteDir, "site", 1, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification of index.html failed")
}

func TestRun_StatFailureFailsVerification(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", "<html></html>")

	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")
	store.On("Put", mock.Anything, mock.Anything, "site/index.html").Return(nil)
	store.On("Stat", mock.Anything, "site/index.html").Return(nil, storage.ErrNotFound)

	_, err := backup.Run(context.Background(), store, siteDir, "site", 1, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_WrapsUploadError(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", "x")

	store := mocks.NewMockStore(t)
	store.On("Name").Return("mock")
	store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := backup.Run(context.Background(), store, siteDir, "site", 1, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload of index.html failed")
}
