// Package sandbox is the Remote Sandbox Execution Core: a service handle
// that lazily initializes one remote workspace and exposes the five
// operations a caller needs (exec, applyPatch, uploadFile, downloadFile,
// getPreviewLink) plus cleanup. Earlier generations of this kind of tool
// kept the workspace as package-level mutable state behind a singleton;
// this implementation exposes it as an explicit *Service instead, built
// by the caller and threaded through like any other dependency.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nkkko/sandboxcore/internal/archive"
	"github.com/nkkko/sandboxcore/internal/config"
	"github.com/nkkko/sandboxcore/internal/errs"
	"github.com/nkkko/sandboxcore/internal/execsvc"
	"github.com/nkkko/sandboxcore/internal/ledger"
	"github.com/nkkko/sandboxcore/internal/lease"
	"github.com/nkkko/sandboxcore/internal/pathmap"
	"github.com/nkkko/sandboxcore/internal/patch"
	"github.com/nkkko/sandboxcore/internal/prepare"
	"github.com/nkkko/sandboxcore/internal/preview"
	"github.com/nkkko/sandboxcore/internal/reaper"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/sessiontrack"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

// bootstrapDirs are created under rootDir in the background after init.
var bootstrapDirs = []string{"src", "tests", "docs", "config"}

// coreState is everything that exists only while the workspace is
// initialized. It is replaced as a whole on init and cleared as a whole
// on cleanup, so a caller either sees no state (not initialized) or a
// fully-populated one, never something in between.
type coreState struct {
	ws       remoteclient.Workspace
	rootDir  string
	mapper   *pathmap.Mapper
	executor *execsvc.Executor
	applier  *patch.Applier
	preview  *preview.Resolver
	sessions *sessiontrack.Map
	reaper   *reaper.Reaper
}

// Service is the sandbox core's service handle.
type Service struct {
	cfg     *config.Config
	client  remoteclient.Client
	homeDir string

	ledgerBackend ledger.Backend
	archiver      archive.Archiver
	metrics       *telemetry.Metrics
	logger        *slog.Logger

	mu         sync.RWMutex
	state      *coreState
	initFlight singleflight.Group

	leaseOnce sync.Once
	lease     *lease.Lease
	leaseErr  error
}

// Options bundles the ambient-stack dependencies a Service may be built
// with. All fields are optional; a nil LedgerBackend or Archiver simply
// disables that ambient feature. Ambient failures never propagate to
// the caller.
type Options struct {
	LedgerBackend ledger.Backend
	Archiver      archive.Archiver
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
	HomeDir       string
}

// New builds a Service. client is the active RemoteClient backend
// (daytona or k8spod); cfg is the resolved environment contract.
func New(cfg *config.Config, client remoteclient.Client, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewLogger(os.Stderr, slog.LevelInfo)
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetrics()
	}
	if opts.HomeDir == "" {
		opts.HomeDir, _ = os.UserHomeDir()
	}
	return &Service{
		cfg:           cfg,
		client:        client,
		homeDir:       opts.HomeDir,
		ledgerBackend: opts.LedgerBackend,
		archiver:      opts.Archiver,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}
}

func (s *Service) getState() *coreState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(st *coreState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// ensureReady returns only when the workspace is initialized, or fails
// with a *errs.ConfigError/*errs.InitError. Concurrent callers share one
// in-flight init.
func (s *Service) ensureReady(ctx context.Context) error {
	if s.getState() != nil {
		return nil
	}

	_, err, _ := s.initFlight.Do("init", func() (interface{}, error) {
		if s.getState() != nil {
			return nil, nil
		}

		ws, err := s.coordinatedCreate(ctx)
		if err != nil {
			s.metrics.InitTotal.WithLabelValues("error").Inc()
			return nil, &errs.InitError{Msg: "workspace create failed", Err: err}
		}

		rootDir, err := ws.GetUserRootDir(ctx)
		if err != nil {
			s.metrics.InitTotal.WithLabelValues("error").Inc()
			return nil, &errs.InitError{Msg: "get user root dir failed", Err: err}
		}
		if rootDir == "" {
			s.metrics.InitTotal.WithLabelValues("error").Inc()
			return nil, &errs.InitError{Msg: "workspace returned an empty root dir"}
		}

		st := s.buildState(ws, rootDir)
		s.setState(st)
		s.metrics.InitTotal.WithLabelValues("success").Inc()

		go s.bootstrap(ws, rootDir)
		if s.cfg.ReaperEnabled() {
			st.reaper.Start(reaper.DefaultSchedule)
		}

		return nil, nil
	})
	return err
}

// coordinatedCreate calls client.Create directly when no lease pool is
// configured. When SANDBOX_LEASE_ENDPOINTS names an etcd cluster, it
// first campaigns for a fleet-wide election so at most one replica's
// create call is in flight against the backend at a time, which keeps a
// fleet of sandboxcore processes sharing one provider-side quota from
// stampeding client.Create simultaneously. Each winner still ends up
// with its own Workspace, resigns immediately after creating it, and
// publishes the new workspace id for observability before the next
// waiting replica campaigns.
func (s *Service) coordinatedCreate(ctx context.Context) (remoteclient.Workspace, error) {
	if len(s.cfg.LeaseEndpoints) == 0 {
		return s.client.Create(ctx, remoteclient.CreateOptions{AutoStopInterval: s.cfg.AutoStopInterval})
	}

	l, err := s.leaseFor()
	if err != nil {
		s.logger.Warn("sandbox: lease unavailable, creating without fleet coordination", slog.Any("err", err))
		return s.client.Create(ctx, remoteclient.CreateOptions{AutoStopInterval: s.cfg.AutoStopInterval})
	}

	candidate := fmt.Sprintf("%s-%d", s.homeDir, os.Getpid())
	if err := l.Campaign(ctx, candidate); err != nil {
		return nil, fmt.Errorf("sandbox: lease campaign: %w", err)
	}
	defer func() {
		if err := l.Resign(ctx); err != nil {
			s.logger.Warn("sandbox: lease resign failed", slog.Any("err", err))
		}
	}()

	ws, err := s.client.Create(ctx, remoteclient.CreateOptions{AutoStopInterval: s.cfg.AutoStopInterval})
	if err != nil {
		return nil, err
	}
	if err := l.PublishWorkspace(ctx, ws.ID()); err != nil {
		s.logger.Warn("sandbox: lease publish workspace failed", slog.Any("err", err))
	}
	return ws, nil
}

func (s *Service) leaseFor() (*lease.Lease, error) {
	s.leaseOnce.Do(func() {
		key := fmt.Sprintf("/sandboxcore/%s", s.cfg.Target)
		s.lease, s.leaseErr = lease.New(s.cfg.LeaseEndpoints, key)
	})
	return s.lease, s.leaseErr
}

func (s *Service) buildState(ws remoteclient.Workspace, rootDir string) *coreState {
	mapper := pathmap.New(rootDir, s.homeDir)
	preparer := prepare.New(mapper)
	sessions := sessiontrack.New()
	previewResolver := &preview.Resolver{WorkspaceID: ws.ID(), GetPreviewLink: ws.GetPreviewLink}
	executor := execsvc.New(mapper, preparer, ws, sessions, previewResolver, s.metrics, s.logger)
	applier := patch.New(mapper, ws)

	procFn := func() (remoteclient.Process, bool) {
		if st := s.getState(); st != nil {
			return st.ws.Process(), true
		}
		return nil, false
	}
	r := reaper.New(sessions, procFn, reaper.DefaultStaleness, s.metrics, s.logger)

	return &coreState{
		ws:       ws,
		rootDir:  rootDir,
		mapper:   mapper,
		executor: executor,
		applier:  applier,
		preview:  previewResolver,
		sessions: sessions,
		reaper:   r,
	}
}

// bootstrap asynchronously creates the common working directories.
// Errors here are logged and swallowed; they never fail init.
func (s *Service) bootstrap(ws remoteclient.Workspace, rootDir string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, dir := range bootstrapDirs {
		path := rootDir + "/" + dir
		if err := ws.FS().CreateFolder(ctx, path); err != nil {
			s.logger.Warn("sandbox: bootstrap directory failed", slog.String("dir", path), slog.Any("err", err))
		}
	}
}

// Cleanup tears down the active workspace, deleting every tracked
// session and resetting all fields to their pre-init zero state.
// It is idempotent and safe on a never-initialized Service. Teardown
// always runs to the end and resets the state; session-deletion failures
// are only logged, and the returned error is the workspace-removal
// error, if any, which a best-effort caller may ignore.
func (s *Service) Cleanup(ctx context.Context) error {
	st := s.getState()
	if st == nil {
		return nil
	}

	st.reaper.Stop()

	for _, entry := range st.sessions.Clear() {
		if err := st.ws.Process().DeleteSession(ctx, entry.SessionID); err != nil {
			s.logger.Warn("sandbox: cleanup failed to delete session", slog.String("session_id", entry.SessionID), slog.Any("err", err))
		}
	}

	err := s.client.Remove(ctx, st.ws)
	if err != nil {
		s.logger.Warn("sandbox: cleanup failed to remove workspace", slog.Any("err", err))
	}

	s.setState(nil)

	if s.lease != nil {
		if closeErr := s.lease.Close(); closeErr != nil {
			s.logger.Warn("sandbox: lease close failed", slog.Any("err", closeErr))
		}
	}

	return err
}

// InstallSignalHandlers registers Cleanup to run on SIGINT/SIGTERM. The
// caller's main is responsible for invoking this explicitly; it is never
// wired automatically by New.
func (s *Service) InstallSignalHandlers() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Cleanup(ctx)
		os.Exit(0)
	}()
}

func summarizeCmd(cmd []string) string {
	return fmt.Sprintf("%v", cmd)
}
