package disaster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnsafeTarget is returned when the target directory resolves to a
// path too dangerous to clear. This guard never retries and cannot be
// overridden by configuration.
var ErrUnsafeTarget = errors.New("refusing to clear unsafe target directory")

// A cleared target must sit at least this many path components below
// the filesystem root ("/var/www/site" = 3).
const minDepth = 2

// Summary reports what the simulation removed
type Summary struct {
	EntriesRemoved int
	Duration       time.Duration
}

// Run recursively removes the contents of targetDir while keeping the
// directory inode itself, so a later restore can write into it. This
// is the single most dangerous entry point in the system: the target
// is resolved through symlinks and checked against root, home and
// shallow paths before anything is deleted.
func Run(ctx context.Context, targetDir string, logger zerolog.Logger) (Summary, error) {
	start := time.Now()

	log := logger.With().Str("target_dir", targetDir).Logger()

	resolved, err := guardTarget(targetDir)
	if err != nil {
		return Summary{}, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read target directory: %w", err)
	}

	log.Warn().
		Str("resolved", resolved).
		Int("entries", len(entries)).
		Msg("simulating disaster: clearing target directory")

	removed := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return Summary{EntriesRemoved: removed, Duration: time.Since(start)}, ctx.Err()
		default:
		}

		p := filepath.Join(resolved, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			return Summary{EntriesRemoved: removed, Duration: time.Since(start)},
				fmt.Errorf("failed to remove %s: %w", p, err)
		}
		log.Debug().Str("path", p).Msg("removed")
		removed++
	}

	summary := Summary{EntriesRemoved: removed, Duration: time.Since(start)}

	log.Info().
		Int("entries_removed", summary.EntriesRemoved).
		Dur("duration", summary.Duration).
		Msg("disaster simulation completed, directory inode kept")

	return summary, nil
}

// guardTarget resolves the target and rejects anything that is not a
// plausibly-deep site directory.
func guardTarget(targetDir string) (string, error) {
	if !filepath.IsAbs(targetDir) {
		return "", fmt.Errorf("%w: %s is not absolute", ErrUnsafeTarget, targetDir)
	}

	resolved, err := filepath.EvalSymlinks(targetDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve target directory: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrUnsafeTarget, resolved)
	}

	clean := filepath.Clean(resolved)
	vol := filepath.VolumeName(clean)
	trimmed := strings.Trim(strings.TrimPrefix(clean, vol), string(filepath.Separator))
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is a filesystem root", ErrUnsafeTarget, clean)
	}

	depth := len(strings.Split(trimmed, string(filepath.Separator)))
	if depth < minDepth {
		return "", fmt.Errorf("%w: %s is too shallow (depth %d)", ErrUnsafeTarget, clean, depth)
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if filepath.Clean(home) == clean {
			return "", fmt.Errorf("%w: %s is the home directory", ErrUnsafeTarget, clean)
		}
	}

	return clean, nil
}
