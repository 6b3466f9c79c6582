package disaster_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/site_backuper/pkg/disaster"
)

func TestRun_ClearsContentsKeepsDirectory(t *testing.T) {
	targetDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(targetDir, "css"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "index.html"), []byte("<html></html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "css", "styles.css"), []byte("body {}"), 0644))

	before, err := os.Stat(targetDir)
	require.NoError(t, err)

	summary, err := disaster.Run(context.Background(), targetDir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EntriesRemoved)

	after, err := os.Stat(targetDir)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "the directory inode must survive")

	entries, err := os.ReadDir(targetDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_EmptyDirectory(t *testing.T) {
	summary, err := disaster.Run(context.Background(), t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, summary.EntriesRemoved)
}

func TestRun_RefusesRelativePath(t *testing.T) {
	_, err := disaster.Run(context.Background(), "some/relative/dir", zerolog.Nop())
	assert.ErrorIs(t, err, disaster.ErrUnsafeTarget)
}

func TestRun_RefusesFilesystemRoot(t *testing.T) {
	_, err := disaster.Run(context.Background(), "/", zerolog.Nop())
	assert.ErrorIs(t, err, disaster.ErrUnsafeTarget)
}

func TestRun_RefusesShallowPath(t *testing.T) {
	_, err := disaster.Run(context.Background(), "/tmp", zerolog.Nop())
	assert.ErrorIs(t, err, disaster.ErrUnsafeTarget)
}

func TestRun_RefusesHomeDirectory(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory in this environment")
	}
	resolved, err := filepath.EvalSymlinks(home)
	require.NoError(t, err)

	_, err = disaster.Run(context.Background(), resolved, zerolog.Nop())
	assert.ErrorIs(t, err, disaster.ErrUnsafeTarget)
}

func TestRun_MissingTarget(t *testing.T) {
	_, err := disaster.Run(context.Background(), filepath.Join(t.TempDir(), "gone"), zerolog.Nop())
	assert.Error(t, err)
}

func TestRun_RefusesRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := disaster.Run(context.Background(), file, zerolog.Nop())
	assert.ErrorIs(t, err, disaster.ErrUnsafeTarget)
}

func TestRun_CancelledContext(t *testing.T) {
	targetDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "index.html"), []byte("x"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := disaster.Run(ctx, targetDir, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}
