package sandbox

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/nkkko/sandboxcore/internal/config"
	"github.com/nkkko/sandboxcore/internal/execsvc"
	"github.com/nkkko/sandboxcore/internal/remoteclient/fake"
	"github.com/nkkko/sandboxcore/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{APIKey: "test-key", AutoStopInterval: 0}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, fake.NewClient(), Options{Logger: logger, HomeDir: "/Users/alice"})
}

func TestServiceExecInitializesLazily(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	if s.getState() != nil {
		t.Fatalf("expected no workspace before first operation")
	}

	res := s.Exec(ctx, execsvc.Input{Cmd: []string{"echo", "hi"}})
	if res.ExitCode != 0 || strings.TrimRight(res.Stdout, "\n") != "hi" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if s.getState() == nil {
		t.Fatalf("expected workspace to be initialized after first exec")
	}
}

func TestServiceApplyPatchThenDownload(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	patchText := strings.Join([]string{
		"*** Begin Patch",
		"*** Add File: greeting.txt",
		"+hello from the patch",
		"*** End of File",
		"*** End Patch",
	}, "\n")

	res := s.ApplyPatch(ctx, patchText)
	testutil.AssertExecSuccess(t, res)

	content, err := s.DownloadFile(ctx, "greeting.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(content) != "hello from the patch\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestServiceUploadThenDownloadRoundTrip(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	if err := s.UploadFile(ctx, "notes.txt", []byte("remember this")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	content, err := s.DownloadFile(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(content) != "remember this" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestServiceCleanupResetsState(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	s.Exec(ctx, execsvc.Input{Cmd: []string{"echo", "hi"}, Workdir: "/Users/alice/proj"})
	if s.getState() == nil {
		t.Fatalf("expected state after exec")
	}

	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if s.getState() != nil {
		t.Fatalf("expected state to be cleared after cleanup")
	}

	// Cleanup is idempotent.
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
}

// TestServiceConcurrentExecCreatesWorkspaceOnce exercises concrete
// scenario 6 (concurrent init): N concurrent callers against a fresh Service must
// observe exactly one client.Create call, and all of them must see the
// same workspace id.
func TestServiceConcurrentExecCreatesWorkspaceOnce(t *testing.T) {
	cfg := &config.Config{APIKey: "test-key", AutoStopInterval: 0}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := fake.NewClient()
	s := New(cfg, client, Options{Logger: logger, HomeDir: "/Users/alice"})

	const callers = 5
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Exec(context.Background(), execsvc.Input{Cmd: []string{"echo", "hi"}})
			ids[i] = s.getState().ws.ID()
		}(i)
	}
	wg.Wait()

	if client.CreateCalls != 1 {
		t.Errorf("expected exactly one create call, got %d", client.CreateCalls)
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Errorf("caller %d saw workspace id %q, want %q", i, id, ids[0])
		}
	}
}

func TestServiceReinitializesAfterCleanup(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	s.Exec(ctx, execsvc.Input{Cmd: []string{"echo", "first"}})
	first := s.getState().ws.ID()
	s.Cleanup(ctx)

	res := s.Exec(ctx, execsvc.Input{Cmd: []string{"echo", "second"}})
	testutil.AssertExecSuccess(t, res)
	second := s.getState().ws.ID()
	if first == second {
		t.Errorf("expected a fresh workspace id after cleanup, got the same one")
	}
}
