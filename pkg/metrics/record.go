package metrics

import "time"

// Kind identifies the operation type a record describes
type Kind string

const (
	KindBackup   Kind = "backup"
	KindRestore  Kind = "restore"
	KindDisaster Kind = "disaster"
)

// Status is the lifecycle state of an operation record
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Failure reasons recorded alongside StatusFailed
const (
	ReasonInterrupted = "interrupted"
	ReasonTimeout     = "timeout"
)

// Record is one durable entry in the operation log. A record is
// appended when an operation starts (running) and appended again with
// the same id when it finishes; the last line per id wins.
type Record struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	Status           Status    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at,omitempty"`
	Error            string    `json:"error,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	BytesTransferred int64     `json:"bytes_transferred,omitempty"`
	FileCount        int       `json:"file_count,omitempty"`
	PublishError     string    `json:"publish_error,omitempty"`
}

// Finished reports whether the record reached a terminal status
func (r *Record) Finished() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// Duration returns how long the operation ran, zero while unfinished
func (r *Record) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
