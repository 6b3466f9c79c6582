package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/williamokano/site_backuper/pkg/snapshot"
	"github.com/williamokano/site_backuper/pkg/storage"
)

var (
	// ErrNoSnapshotFound means the remote prefix holds no objects.
	// Restore must never silently rebuild an empty directory from
	// nothing, so this is fatal for the operation.
	ErrNoSnapshotFound = errors.New("no snapshot found under remote prefix")

	// ErrTargetMissing means the target directory does not exist.
	// The core never guesses a location to create.
	ErrTargetMissing = errors.New("target directory missing")

	// ErrVerifyFailed means a restored file does not match what the
	// snapshot listing promised
	ErrVerifyFailed = errors.New("restore verification failed")
)

// Options controls restore behavior
type Options struct {
	// Clean removes local files absent from the snapshot after all
	// downloads succeed. The default is additive: local extras are
	// kept.
	Clean bool

	// Workers bounds parallel downloads (default 1)
	Workers int

	// SafetyDir, when set, receives a copy of the target's current
	// content before any download overwrites it
	SafetyDir string

	// SkipSafetyCopy disables the pre-restore safety copy that the
	// keeper configures by default
	SkipSafetyCopy bool
}

// Summary aggregates what an operation transferred
type Summary struct {
	FileCount int
	Bytes     int64
	Removed   int // files deleted by clean mode
	Preserved int // files copied aside before the restore
	Duration  time.Duration
}

type plannedFile struct {
	key      string
	relPath  string
	destPath string
	size     int64
}

// Run reconstructs targetDir from the snapshot under prefix. Every
// remote key is validated against the target before anything is
// written: a crafted key that would escape the directory fails the
// whole operation with nothing on disk touched. A failed download
// (after retries) fails the run but already-written files stay in
// place, since restore is safe to re-run.
func Run(ctx context.Context, store storage.Store, targetDir, prefix string, opts Options, logger zerolog.Logger) (Summary, error) {
	start := time.Now()

	log := logger.With().
		Str("store", store.Name()).
		Str("target_dir", targetDir).
		Str("prefix", prefix).
		Logger()

	info, err := os.Stat(targetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, fmt.Errorf("%w: %s", ErrTargetMissing, targetDir)
		}
		return Summary{}, err
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%w: %s is not a directory", ErrTargetMissing, targetDir)
	}

	log.Info().Msg("listing remote snapshot")

	// Match the prefix at a key boundary so a sibling prefix such as
	// "site-staging" is never swept into a restore of "site"
	listPrefix := prefix
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	objects, err := store.List(ctx, listPrefix)
	if err != nil {
		return Summary{}, fmt.Errorf("snapshot listing failed: %w", err)
	}

	// Validate the whole download plan before writing anything
	var planned []plannedFile
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, listPrefix) {
			continue
		}
		rel := strings.TrimPrefix(obj.Key, listPrefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}

		dest, err := snapshot.SecureJoin(targetDir, rel)
		if err != nil {
			return Summary{}, fmt.Errorf("rejecting remote key %q: %w", obj.Key, err)
		}

		planned = append(planned, plannedFile{
			key:      obj.Key,
			relPath:  rel,
			destPath: dest,
			size:     obj.Size,
		})
	}

	if len(planned) == 0 {
		return Summary{}, fmt.Errorf("%w: %s", ErrNoSnapshotFound, prefix)
	}

	preserved := 0
	if opts.SafetyDir != "" && !opts.SkipSafetyCopy {
		preserved, err = preserveExisting(targetDir, opts.SafetyDir)
		if err != nil {
			return Summary{}, fmt.Errorf("safety copy failed: %w", err)
		}
		if preserved > 0 {
			log.Info().
				Int("files", preserved).
				Str("safety_dir", opts.SafetyDir).
				Msg("copied current content aside before restore")
		}
	}

	log.Info().Int("file_count", len(planned)).Msg("downloading snapshot")

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	for _, pf := range planned {
		pf := pf

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			log.Debug().
				Str("key", pf.key).
				Str("path", pf.relPath).
				Msg("downloading file")

			if err := store.Get(gctx, pf.key, pf.destPath); err != nil {
				return fmt.Errorf("download of %s failed: %w", pf.key, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	if err := verifyDownloads(planned); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		FileCount: len(planned),
		Preserved: preserved,
		Duration:  time.Since(start),
	}
	for _, pf := range planned {
		summary.Bytes += pf.size
	}

	if opts.Clean {
		removed, err := removeExtraneous(targetDir, planned, log)
		if err != nil {
			return summary, fmt.Errorf("clean pass failed: %w", err)
		}
		summary.Removed = removed
	}

	summary.Duration = time.Since(start)

	log.Info().
		Int("file_count", summary.FileCount).
		Int64("bytes", summary.Bytes).
		Int("removed", summary.Removed).
		Dur("duration", summary.Duration).
		Msg("restore completed")

	return summary, nil
}

// preserveExisting copies every file currently under targetDir into
// safetyDir, keeping relative paths, so a bad restore can be undone
// by hand.
func preserveExisting(targetDir, safetyDir string) (int, error) {
	copied := 0
	err := filepath.WalkDir(targetDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(targetDir, p)
		if err != nil {
			return err
		}
		dest := filepath.Join(safetyDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := copyFile(p, dest); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// verifyDownloads checks every planned file against what the snapshot
// listing promised, after all downloads completed
func verifyDownloads(planned []plannedFile) error {
	for _, pf := range planned {
		info, err := os.Stat(pf.destPath)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrVerifyFailed, pf.relPath, err)
		}
		if info.Size() != pf.size {
			return fmt.Errorf("%w: %s has %d bytes, snapshot lists %d",
				ErrVerifyFailed, pf.relPath, info.Size(), pf.size)
		}
	}
	return nil
}

// removeExtraneous deletes local files not present in the snapshot,
// then prunes directories the deletions emptied. Runs only after
// every download has succeeded.
func removeExtraneous(targetDir string, planned []plannedFile, log zerolog.Logger) (int, error) {
	keep := make(map[string]struct{}, len(planned))
	for _, pf := range planned {
		keep[pf.relPath] = struct{}{}
	}

	var extraneous []string
	err := filepath.WalkDir(targetDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(targetDir, p)
		if err != nil {
			return err
		}
		if _, ok := keep[filepath.ToSlash(rel)]; !ok {
			extraneous = append(extraneous, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, p := range extraneous {
		log.Info().Str("path", p).Msg("removing file absent from snapshot")
		if err := os.Remove(p); err != nil {
			return 0, err
		}
	}

	pruneEmptyDirs(targetDir)

	return len(extraneous), nil
}

func pruneEmptyDirs(root string) {
	var dirs []string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && p != root {
			dirs = append(dirs, p)
		}
		return nil
	})
	// Deepest first so parents empty out as children go
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
}
