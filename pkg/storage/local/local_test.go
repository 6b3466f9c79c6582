package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/site_backuper/pkg/storage"
	"github.com/williamokano/site_backuper/pkg/storage/local"
)

func newLocalStore(t *testing.T) (*local.Store, string) {
	t.Helper()
	baseDir := t.TempDir()
	store, err := local.New(storage.Config{
		Name:    "test-local",
		Type:    "local",
		Enabled: true,
		BaseDir: baseDir,
	})
	require.NoError(t, err)
	return store, baseDir
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNew_MissingPath(t *testing.T) {
	_, err := local.New(storage.Config{Name: "bad", Type: "local", Enabled: true})
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)
}

func TestNew_PathOptionOverridesBaseDir(t *testing.T) {
	optionDir := t.TempDir()
	store, err := local.New(storage.Config{
		Name:    "opt",
		Type:    "local",
		Enabled: true,
		BaseDir: t.TempDir(),
		Options: map[string]interface{}{"path": optionDir},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, writeSource(t, "x"), "key.txt"))
	_, err = os.Stat(filepath.Join(optionDir, "key.txt"))
	assert.NoError(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	source := writeSource(t, "hello world")
	require.NoError(t, store.Put(ctx, source, "site/index.html"))

	dest := filepath.Join(t.TempDir(), "restored", "index.html")
	require.NoError(t, store.Get(ctx, "site/index.html", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestGet_NotFound(t *testing.T) {
	store, _ := newLocalStore(t)

	err := store.Get(context.Background(), "missing.txt", filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestList_PrefixAndOrdering(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, writeSource(t, "a"), "site/b.html"))
	require.NoError(t, store.Put(ctx, writeSource(t, "b"), "site/a.html"))
	require.NoError(t, store.Put(ctx, writeSource(t, "c"), "other/c.html"))

	objects, err := store.List(ctx, "site/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "site/a.html", objects[0].Key)
	assert.Equal(t, "site/b.html", objects[1].Key)
}

func TestList_EmptyPrefix(t *testing.T) {
	store, _ := newLocalStore(t)

	objects, err := store.List(context.Background(), "site/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestStat(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, writeSource(t, "12345"), "site/file.txt"))

	info, err := store.Stat(ctx, "site/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "site/file.txt", info.Key)
	assert.Equal(t, int64(5), info.Size)

	_, err = store.Stat(ctx, "site/missing.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBucketExists(t *testing.T) {
	store, _ := newLocalStore(t)

	exists, err := store.BucketExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFactoryCreatesLocalStore(t *testing.T) {
	factory := storage.NewFactory()

	store, err := factory.Create(context.Background(), storage.Config{
		Name:    "primary",
		Type:    "local",
		Enabled: true,
		BaseDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Type())
	assert.Equal(t, "primary", store.Name())
	assert.NoError(t, store.Close())
}

func TestFactoryFirstEnabledSkipsDisabled(t *testing.T) {
	factory := storage.NewFactory()

	store, err := factory.CreateFirstEnabled(context.Background(), []storage.Config{
		{Name: "off", Type: "local", Enabled: false, BaseDir: t.TempDir()},
		{Name: "on", Type: "local", Enabled: true, BaseDir: t.TempDir()},
	})
	require.NoError(t, err)
	assert.Equal(t, "on", store.Name())
}

func TestFactoryNoEnabledDestination(t *testing.T) {
	factory := storage.NewFactory()

	_, err := factory.CreateFirstEnabled(context.Background(), []storage.Config{
		{Name: "off", Type: "local", Enabled: false, BaseDir: t.TempDir()},
	})
	assert.Error(t, err)
}
