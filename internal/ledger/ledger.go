// Package ledger records a durable, queryable audit trail of every
// completed exec/patch operation, independent of the in-memory
// sessionMap/pathCache the Lifecycle Manager keeps. Ledger writes are
// always best-effort: a Backend error is logged by the caller and never
// changes the ExecResult already computed.
package ledger

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind distinguishes the two operations the ledger records.
type Kind string

const (
	KindExec  Kind = "exec"
	KindPatch Kind = "patch"
)

// Entry is one durable audit record.
type Entry struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Kind          Kind      `json:"kind"`
	Summary       string    `json:"summary"`
	ExitCode      int       `json:"exit_code"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewID mints a new ULID for a ledger entry. ULIDs sort lexicographically
// by creation time, which keeps the local JSON backend's on-disk order
// meaningful without a separate index.
func NewID() string {
	return ulid.Make().String()
}

// Backend is the interface for ledger persistence. The default backend
// is a local JSON file; a Postgres backend is available for
// multi-process deployments that want a shared audit trail.
type Backend interface {
	// Append durably records one completed operation.
	Append(ctx context.Context, e Entry) error

	// List returns the most recent entries, newest first, capped at limit.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Close releases any resources held by the backend.
	Close() error
}
