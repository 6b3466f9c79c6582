package backup

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/williamokano/site_backuper/pkg/snapshot"
	"github.com/williamokano/site_backuper/pkg/storage"

	// Import stores to register them
	_ "github.com/williamokano/site_backuper/pkg/storage/backblaze"
	_ "github.com/williamokano/site_backuper/pkg/storage/local"
	_ "github.com/williamokano/site_backuper/pkg/storage/s3"
	_ "github.com/williamokano/site_backuper/pkg/storage/ssh"
)

// Summary aggregates what an operation transferred
type Summary struct {
	FileCount int
	Bytes     int64
	Duration  time.Duration
}

// Run snapshots targetDir and uploads every file under prefix. The
// manifest walk completes before the first upload, so the snapshot's
// content list is decided atomically. Uploads run in a bounded worker
// pool over disjoint keys; the first permanent failure cancels the
// rest and fails the whole run with the offending path named. Nothing
// is resumed across runs: a retried backup re-walks and re-uploads
// everything, which is safe because uploads are idempotent.
func Run(ctx context.Context, store storage.Store, targetDir, prefix string, workers int, logger zerolog.Logger) (Summary, error) {
	start := time.Now()

	log := logger.With().
		Str("store", store.Name()).
		Str("target_dir", targetDir).
		Str("prefix", prefix).
		Logger()

	log.Info().Msg("building snapshot manifest")

	manifest, err := snapshot.Build(targetDir)
	if err != nil {
		return Summary{}, fmt.Errorf("snapshot build failed: %w", err)
	}

	if len(manifest) == 0 {
		log.Warn().Msg("source directory is empty, nothing to upload")
		return Summary{Duration: time.Since(start)}, nil
	}

	log.Info().
		Int("file_count", len(manifest)).
		Int64("total_bytes", manifest.TotalBytes()).
		Msg("manifest built, starting upload")

	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	for _, entry := range manifest {
		entry := entry

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			key := path.Join(prefix, entry.Path)
			src := filepath.Join(targetDir, filepath.FromSlash(entry.Path))

			log.Debug().
				Str("path", entry.Path).
				Str("key", key).
				Int64("size", entry.Size).
				Str("sha256", entry.SHA256).
				Msg("uploading file")

			if err := store.Put(gctx, src, key); err != nil {
				return fmt.Errorf("upload of %s failed: %w", entry.Path, err)
			}

			// Read the object back to confirm the store holds what
			// the manifest promised
			info, err := store.Stat(gctx, key)
			if err != nil {
				return fmt.Errorf("verification of %s failed: %w", entry.Path, err)
			}
			if info.Size != entry.Size {
				return fmt.Errorf("verification of %s failed: stored %d bytes, local file has %d",
					entry.Path, info.Size, entry.Size)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		FileCount: len(manifest),
		Bytes:     manifest.TotalBytes(),
		Duration:  time.Since(start),
	}

	log.Info().
		Int("file_count", summary.FileCount).
		Int64("bytes", summary.Bytes).
		Dur("duration", summary.Duration).
		Msg("backup upload completed")

	return summary, nil
}
