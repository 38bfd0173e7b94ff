package reaper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/sessiontrack"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

type fakeProcess struct {
	deleted []string
}

func (f *fakeProcess) ExecuteCommand(ctx context.Context, cmd, workdir string, env map[string]string, timeoutSec int) (*remoteclient.CommandResult, error) {
	return nil, nil
}
func (f *fakeProcess) CreateSession(ctx context.Context, id string) error { return nil }
func (f *fakeProcess) ExecuteSessionCommand(ctx context.Context, id string, req remoteclient.SessionCommandRequest) (*remoteclient.SessionCommandResult, error) {
	return nil, nil
}
func (f *fakeProcess) GetSessionCommandLogs(ctx context.Context, id, cmdID string, onChunk func(string)) error {
	return nil
}
func (f *fakeProcess) DeleteSession(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestReaper(sessions *sessiontrack.Map, proc *fakeProcess, staleness time.Duration) *Reaper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sessions, func() (remoteclient.Process, bool) { return proc, true }, staleness, telemetry.NewMetrics(), logger)
}

func TestSweepRemovesOnlyStaleSessions(t *testing.T) {
	sessions := sessiontrack.New()
	now := time.Now()
	sessions.Put("fresh", "sess-fresh", now)
	sessions.Put("stale", "sess-stale", now.Add(-1*time.Hour))

	proc := &fakeProcess{}
	r := newTestReaper(sessions, proc, 15*time.Minute)
	r.sweep()

	if len(proc.deleted) != 1 || proc.deleted[0] != "sess-stale" {
		t.Errorf("expected only sess-stale to be deleted, got %v", proc.deleted)
	}
	if _, ok := sessions.Get("fresh"); !ok {
		t.Errorf("expected fresh session to remain tracked")
	}
	if _, ok := sessions.Get("stale"); ok {
		t.Errorf("expected stale session to be untracked after sweep")
	}
}

func TestSweepSkipsWhenWorkspaceNotReady(t *testing.T) {
	sessions := sessiontrack.New()
	sessions.Put("stale", "sess-stale", time.Now().Add(-1*time.Hour))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(sessions, func() (remoteclient.Process, bool) { return nil, false }, 15*time.Minute, telemetry.NewMetrics(), logger)
	r.sweep()

	if _, ok := sessions.Get("stale"); !ok {
		t.Errorf("expected sweep to be a no-op when the workspace is not ready")
	}
}

func TestSweepIsNoOpWithNoStaleSessions(t *testing.T) {
	sessions := sessiontrack.New()
	sessions.Put("fresh", "sess-fresh", time.Now())

	proc := &fakeProcess{}
	r := newTestReaper(sessions, proc, 15*time.Minute)
	r.sweep()

	if len(proc.deleted) != 0 {
		t.Errorf("expected no deletions, got %v", proc.deleted)
	}
}
