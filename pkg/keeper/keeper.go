package keeper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/site_backuper/pkg/backup"
	"github.com/williamokano/site_backuper/pkg/config"
	"github.com/williamokano/site_backuper/pkg/disaster"
	"github.com/williamokano/site_backuper/pkg/metrics"
	"github.com/williamokano/site_backuper/pkg/oplock"
	"github.com/williamokano/site_backuper/pkg/publish"
	"github.com/williamokano/site_backuper/pkg/restore"
	"github.com/williamokano/site_backuper/pkg/storage"
)

// ErrPublishFailed wraps a publish hook failure after an otherwise
// successful restore. The restored files are correct on disk, so the
// operation record stays succeeded with the hook error noted.
var ErrPublishFailed = errors.New("publish hook failed")

// Status is what the dashboard polls
type Status struct {
	Lock        oplock.State    `json:"lock"`
	LastBackup  *metrics.Record `json:"last_backup,omitempty"`
	LastRestore *metrics.Record `json:"last_restore,omitempty"`
}

// Keeper wires the orchestrators to the operation lock, the metrics
// store and the publish hook. All trigger methods are synchronous:
// they return once the underlying operation completes or fails.
// Callers wanting non-blocking behavior layer their own dispatch on
// top, and cancel long operations through the context deadline.
type Keeper struct {
	cfg       *config.Config
	store     storage.Store
	publisher publish.Publisher
	records   *metrics.Store
	locks     *oplock.Registry
	log       zerolog.Logger
}

// New builds a Keeper. The storage destination is probed up front
// (a missing bucket is a configuration problem, not something an
// operation-level retry can fix) and stale running records are
// reconciled before any lock can be handed out, so a previous crash
// cannot block operations.
func New(ctx context.Context, cfg *config.Config, store storage.Store, publisher publish.Publisher, records *metrics.Store, logger zerolog.Logger) (*Keeper, error) {
	if publisher == nil {
		publisher = publish.Noop{}
	}

	ok, err := store.BucketExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage destination check failed: %w", err)
	}
	if !ok {
		return nil, storage.WrapError(store.Name(), "startup check", storage.ErrInvalidConfig)
	}

	reconciled, err := records.Reconcile(cfg.GetStaleAfter())
	if err != nil {
		return nil, fmt.Errorf("startup reconciliation failed: %w", err)
	}
	if reconciled > 0 {
		logger.Warn().Int("count", reconciled).Msg("reconciled interrupted operations from a previous run")
	}

	return &Keeper{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		records:   records,
		locks:     oplock.NewRegistry(),
		log:       logger,
	}, nil
}

// TriggerBackup snapshots the site directory and uploads it
func (k *Keeper) TriggerBackup(ctx context.Context) (*metrics.Record, error) {
	return k.run(ctx, metrics.KindBackup, func(ctx context.Context, rec *metrics.Record) error {
		sum, err := backup.Run(ctx, k.store, k.cfg.SiteDir, k.cfg.GetRemotePrefix(),
			k.cfg.GetMaxConcurrentTransfers(), k.log)
		if err != nil {
			return err
		}
		rec.FileCount = sum.FileCount
		rec.BytesTransferred = sum.Bytes
		return nil
	})
}

// TriggerRestore reconstructs the site directory from the most recent
// snapshot and, on success, invokes the publish hook. The current
// content is copied aside under the state directory first, unless the
// caller opts out. A hook failure surfaces as ErrPublishFailed but
// does not fail the record: the files are already correctly restored.
func (k *Keeper) TriggerRestore(ctx context.Context, opts restore.Options) (*metrics.Record, error) {
	if opts.Workers == 0 {
		opts.Workers = k.cfg.GetMaxConcurrentTransfers()
	}
	if opts.SafetyDir == "" && !opts.SkipSafetyCopy {
		opts.SafetyDir = filepath.Join(k.cfg.GetStateDir(), "pre_restore",
			time.Now().UTC().Format("20060102_150405"))
	}

	rec, err := k.run(ctx, metrics.KindRestore, func(ctx context.Context, rec *metrics.Record) error {
		sum, err := restore.Run(ctx, k.store, k.cfg.SiteDir, k.cfg.GetRemotePrefix(), opts, k.log)
		if err != nil {
			return err
		}
		rec.FileCount = sum.FileCount
		rec.BytesTransferred = sum.Bytes

		if pubErr := k.publisher.Publish(ctx); pubErr != nil {
			k.log.Error().Err(pubErr).Str("publisher", k.publisher.Name()).Msg("publish hook failed after restore")
			rec.PublishError = pubErr.Error()
		}
		return nil
	})
	if err != nil {
		return rec, err
	}

	if rec.PublishError != "" {
		return rec, fmt.Errorf("%w: %s", ErrPublishFailed, rec.PublishError)
	}
	return rec, nil
}

// TriggerDisaster clears the site directory under guardrails
func (k *Keeper) TriggerDisaster(ctx context.Context) (*metrics.Record, error) {
	return k.run(ctx, metrics.KindDisaster, func(ctx context.Context, rec *metrics.Record) error {
		sum, err := disaster.Run(ctx, k.cfg.SiteDir, k.log)
		if err != nil {
			return err
		}
		rec.FileCount = sum.EntriesRemoved
		return nil
	})
}

// GetStatus reports lock state and the latest backup/restore outcomes
func (k *Keeper) GetStatus() (Status, error) {
	lastBackup, err := k.records.LastRecord(metrics.KindBackup)
	if err != nil {
		return Status{}, err
	}
	lastRestore, err := k.records.LastRecord(metrics.KindRestore)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Lock:        k.locks.Current(k.cfg.SiteDir),
		LastBackup:  lastBackup,
		LastRestore: lastRestore,
	}, nil
}

// run admits one operation through the lock, records its outcome
// whatever happens, and releases the lock. A refused admission records
// nothing: the already-running operation owns the current record.
func (k *Keeper) run(ctx context.Context, kind metrics.Kind, fn func(context.Context, *metrics.Record) error) (*metrics.Record, error) {
	release, err := k.locks.Acquire(k.cfg.SiteDir, kind)
	if err != nil {
		k.log.Warn().Str("kind", string(kind)).Err(err).Msg("operation refused")
		return nil, err
	}
	defer release()

	rec, err := k.records.Begin(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to record operation start: %w", err)
	}

	k.log.Info().Str("kind", string(kind)).Str("id", rec.ID).Msg("operation started")

	opErr := fn(ctx, rec)
	if opErr != nil {
		rec.Status = metrics.StatusFailed
		rec.Error = opErr.Error()
		if errors.Is(opErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			rec.Reason = metrics.ReasonTimeout
		}
	} else {
		rec.Status = metrics.StatusSucceeded
	}

	// The record always hits disk before the caller sees the outcome
	if err := k.records.Finalize(rec); err != nil {
		k.log.Error().Err(err).Str("id", rec.ID).Msg("failed to finalize operation record")
		if opErr == nil {
			return rec, err
		}
	}

	if opErr != nil {
		k.log.Error().
			Str("kind", string(kind)).
			Str("id", rec.ID).
			Err(opErr).
			Msg("operation failed")
		return rec, opErr
	}

	k.log.Info().
		Str("kind", string(kind)).
		Str("id", rec.ID).
		Int("file_count", rec.FileCount).
		Int64("bytes", rec.BytesTransferred).
		Msg("operation succeeded")

	return rec, nil
}
