package publish_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/site_backuper/pkg/publish"
)

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

// setupRepos creates a bare remote and a working clone with one commit
func setupRepos(t *testing.T) (workdir, remoteDir string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	remoteDir = t.TempDir()
	git(t, remoteDir, "init", "--bare", "--initial-branch=main")

	workdir = t.TempDir()
	git(t, workdir, "init", "--initial-branch=main")
	git(t, workdir, "config", "user.email", "ops@example.com")
	git(t, workdir, "config", "user.name", "ops")
	git(t, workdir, "remote", "add", "origin", remoteDir)

	require.NoError(t, os.WriteFile(filepath.Join(workdir, "README.md"), []byte("site"), 0644))
	git(t, workdir, "add", "README.md")
	git(t, workdir, "commit", "-m", "initial")
	git(t, workdir, "push", "origin", "main")

	return workdir, remoteDir
}

func TestGitPublish_CommitsAndPushes(t *testing.T) {
	workdir, remoteDir := setupRepos(t)

	siteDir := filepath.Join(workdir, "site")
	require.NoError(t, os.MkdirAll(siteDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("<html></html>"), 0644))

	publisher := publish.NewGit("origin", "main", workdir, "site", zerolog.Nop())
	assert.Equal(t, "git", publisher.Name())

	require.NoError(t, publisher.Publish(context.Background()))

	// The remote must now hold the restored file
	out := git(t, remoteDir, "ls-tree", "-r", "--name-only", "main")
	assert.Contains(t, out, "site/index.html")
}

func TestGitPublish_NothingToCommitStillPushes(t *testing.T) {
	workdir, _ := setupRepos(t)

	publisher := publish.NewGit("origin", "main", workdir, ".", zerolog.Nop())

	// No new changes: commit is a no-op, push succeeds
	assert.NoError(t, publisher.Publish(context.Background()))
}

func TestGitPublish_BadRemoteFails(t *testing.T) {
	workdir, _ := setupRepos(t)

	publisher := publish.NewGit("nonexistent", "main", workdir, ".", zerolog.Nop())

	err := publisher.Publish(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git push failed")
}

func TestNoopPublisher(t *testing.T) {
	var p publish.Publisher = publish.Noop{}
	assert.Equal(t, "noop", p.Name())
	assert.NoError(t, p.Publish(context.Background()))
}
