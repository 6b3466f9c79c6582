package publish

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Git publishes by committing the restored site directory and pushing
// it to the remote that serves the deployed site (e.g. GitHub Pages).
type Git struct {
	remote  string
	branch  string
	workdir string
	siteDir string
	log     zerolog.Logger
}

// NewGit creates a git publisher. workdir is the repository root,
// siteDir the directory to stage (may be relative to workdir).
func NewGit(remote, branch, workdir, siteDir string, logger zerolog.Logger) *Git {
	return &Git{
		remote:  remote,
		branch:  branch,
		workdir: workdir,
		siteDir: siteDir,
		log:     logger,
	}
}

func (g *Git) Name() string { return "git" }

// Publish stages the site directory, commits and pushes. A commit
// with nothing to commit is tolerated: the push still runs, since the
// remote may be behind.
func (g *Git) Publish(ctx context.Context) error {
	if err := g.run(ctx, "add", g.siteDir); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}

	message := fmt.Sprintf("Restore site from backup on %s", time.Now().UTC().Format(time.RFC3339))
	if err := g.run(ctx, "commit", "-m", message); err != nil {
		// "nothing to commit" is not a failure
		if !strings.Contains(err.Error(), "nothing to commit") {
			return fmt.Errorf("git commit failed: %w", err)
		}
		g.log.Info().Msg("no changes to commit, pushing anyway")
	}

	if err := g.run(ctx, "push", g.remote, g.branch); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}

	g.log.Info().
		Str("remote", g.remote).
		Str("branch", g.branch).
		Msg("published restored site")
	return nil
}

func (g *Git) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workdir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	g.log.Debug().Strs("args", args).Msg("running git")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}
