package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	logFileName      = "operations.log"
	snapshotFileName = "metrics.json"
)

// Store persists operation records as an append-only JSON-lines log
// and maintains a derived metrics.json snapshot that external monitors
// read. Failures are written to disk before they are surfaced to the
// caller, so status survives a caller crash.
type Store struct {
	mu           sync.Mutex
	logPath      string
	snapshotPath string
	now          func() time.Time
	log          zerolog.Logger
}

// Snapshot is the derived "current metrics" view, one record per kind
type Snapshot struct {
	LastBackup   *Record   `json:"last_backup,omitempty"`
	LastRestore  *Record   `json:"last_restore,omitempty"`
	LastDisaster *Record   `json:"last_disaster,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewStore opens (creating if needed) a metrics store rooted at stateDir
func NewStore(stateDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{
		logPath:      filepath.Join(stateDir, logFileName),
		snapshotPath: filepath.Join(stateDir, snapshotFileName),
		now:          time.Now,
		log:          logger,
	}, nil
}

// Begin appends a running record for a new operation and returns it
func (s *Store) Begin(kind Kind) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: s.now().UTC(),
	}

	if err := s.appendLocked(rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// Finalize appends the terminal state of a record and refreshes the
// derived snapshot file
func (s *Store) Finalize(rec *Record) error {
	if !rec.Finished() {
		return fmt.Errorf("record %s is not in a terminal status: %s", rec.ID, rec.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.EndedAt.IsZero() {
		rec.EndedAt = s.now().UTC()
	}

	if err := s.appendLocked(rec); err != nil {
		return err
	}

	return s.writeSnapshotLocked()
}

// LastRecord returns the most recent record of the given kind, nil if
// no such operation has ever run
func (s *Store) LastRecord(kind Kind) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Kind == kind {
			rec := records[i]
			return &rec, nil
		}
	}

	return nil, nil
}

// Reconcile finalizes records left running longer than staleAfter as
// failed/interrupted. Run at process start, before any lock is handed
// out, so a crashed process cannot deadlock future operations.
func (s *Store) Reconcile(staleAfter time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	reconciled := 0

	for i := range records {
		rec := records[i]
		if rec.Finished() {
			continue
		}
		if now.Sub(rec.StartedAt) < staleAfter {
			continue
		}

		rec.Status = StatusFailed
		rec.Reason = ReasonInterrupted
		rec.Error = "operation was interrupted by a process crash"
		rec.EndedAt = now

		if err := s.appendLocked(&rec); err != nil {
			return reconciled, err
		}

		s.log.Warn().
			Str("id", rec.ID).
			Str("kind", string(rec.Kind)).
			Time("started_at", rec.StartedAt).
			Msg("reconciled stale running operation as interrupted")
		reconciled++
	}

	if reconciled > 0 {
		if err := s.writeSnapshotLocked(); err != nil {
			return reconciled, err
		}
	}

	return reconciled, nil
}

// appendLocked writes one JSON line and fsyncs it
func (s *Store) appendLocked(rec *Record) error {
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open operation log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append operation record: %w", err)
	}

	return f.Sync()
}

// readLocked replays the log. Each id may appear multiple times; the
// latest line wins while the record keeps its original log position.
func (s *Store) readLocked() ([]Record, error) {
	f, err := os.Open(s.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open operation log: %w", err)
	}
	defer f.Close()

	var (
		ordered []Record
		byID    = make(map[string]int)
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.log.Warn().Err(err).Msg("skipping corrupt operation log line")
			continue
		}

		if idx, ok := byID[rec.ID]; ok {
			ordered[idx] = rec
			continue
		}
		byID[rec.ID] = len(ordered)
		ordered = append(ordered, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read operation log: %w", err)
	}

	return ordered, nil
}

func (s *Store) writeSnapshotLocked() error {
	records, err := s.readLocked()
	if err != nil {
		return err
	}

	snap := Snapshot{UpdatedAt: s.now().UTC()}
	for i := range records {
		rec := records[i]
		switch rec.Kind {
		case KindBackup:
			snap.LastBackup = &rec
		case KindRestore:
			snap.LastRestore = &rec
		case KindDisaster:
			snap.LastDisaster = &rec
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so monitors never observe a torn file
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics snapshot: %w", err)
	}
	return os.Rename(tmp, s.snapshotPath)
}
