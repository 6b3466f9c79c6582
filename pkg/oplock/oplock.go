package oplock

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/williamokano/site_backuper/pkg/metrics"
)

// ErrOperationInProgress is returned when a second operation is
// requested against a target directory that is already being worked
// on. Callers should retry later; nothing is queued.
var ErrOperationInProgress = errors.New("operation already in progress")

// State describes the lock for one target directory
type State struct {
	Busy  bool         `json:"busy"`
	Kind  metrics.Kind `json:"kind,omitempty"`
	Since time.Time    `json:"since,omitempty"`
}

// Registry serializes backup, restore and disaster operations per
// target directory. Distinct targets do not contend. The registry is
// process-local: multi-process deployments need a distributed lock,
// which is out of scope here.
type Registry struct {
	mu     sync.Mutex
	active map[string]State
}

// NewRegistry creates an empty lock registry
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]State)}
}

// Acquire transitions the target from idle to running(kind). It
// returns a release function on success and ErrOperationInProgress,
// leaving state unchanged, when the target is busy. The lock is held
// for the full duration of the operation, not per I/O call.
func (r *Registry) Acquire(target string, kind metrics.Kind) (func(), error) {
	key := normalize(target)

	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.active[key]; ok && st.Busy {
		return nil, ErrOperationInProgress
	}

	r.active[key] = State{Busy: true, Kind: kind, Since: time.Now()}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
		})
	}

	return release, nil
}

// Current returns the lock state for a target directory
func (r *Registry) Current(target string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active[normalize(target)]
}

func normalize(target string) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		return filepath.Clean(target)
	}
	return abs
}
