// Package execsvc implements the Session Executor: it owns one
// long-lived remote session per distinct workdir, submits prepared
// commands to it, reconciles the response into an ExecResult, and hands
// the result to the Response Post-Processor. Exec never returns a Go
// error; every failure path degrades to an ExecResult.
package execsvc

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nkkko/sandboxcore/internal/execresult"
	"github.com/nkkko/sandboxcore/internal/pathmap"
	"github.com/nkkko/sandboxcore/internal/prepare"
	"github.com/nkkko/sandboxcore/internal/preview"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/sessiontrack"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

const defaultSessionID = "default-exec-session"

// Input is the caller-shaped exec request.
type Input struct {
	Cmd       []string
	Workdir   string
	TimeoutMs int
}

// Executor runs prepared commands against per-workdir remote sessions.
type Executor struct {
	mapper   *pathmap.Mapper
	preparer *prepare.Preparer
	ws       remoteclient.Workspace
	sessions *sessiontrack.Map
	preview  *preview.Resolver
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	flight singleflight.Group
}

// New builds an Executor bound to one active workspace.
func New(mapper *pathmap.Mapper, preparer *prepare.Preparer, ws remoteclient.Workspace, sessions *sessiontrack.Map, previewResolver *preview.Resolver, metrics *telemetry.Metrics, logger *slog.Logger) *Executor {
	return &Executor{
		mapper:   mapper,
		preparer: preparer,
		ws:       ws,
		sessions: sessions,
		preview:  previewResolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Exec runs one command and returns its outcome.
func (e *Executor) Exec(ctx context.Context, in Input) execresult.Result {
	if len(in.Cmd) == 0 {
		return execresult.Result{Stdout: "", Stderr: "empty command", ExitCode: 1}
	}

	e.preflightHomeDaytona(ctx, in.Cmd)

	prepared := e.preparer.Prepare(in.Cmd, in.Workdir)

	key := in.Workdir
	if key == "" {
		key = sessiontrack.DefaultKey
	}

	sessionID, err := e.acquireSession(ctx, key)
	if err != nil {
		e.logger.Warn("execsvc: session acquisition failed", slog.String("key", key), slog.Any("err", err))
		return execresult.Result{Stdout: "", Stderr: err.Error(), ExitCode: 1}
	}

	select {
	case <-ctx.Done():
		return execresult.Result{Stdout: "", Stderr: "cancelled", ExitCode: 1}
	default:
	}

	timeoutSec := in.TimeoutMs / 1000

	res, err := e.ws.Process().ExecuteSessionCommand(ctx, sessionID, remoteclient.SessionCommandRequest{
		Command:    prepared,
		Async:      false,
		TimeoutSec: timeoutSec,
	})
	if err != nil {
		if ctx.Err() != nil {
			return execresult.Result{Stdout: "", Stderr: "cancelled", ExitCode: 1}
		}
		return execresult.Result{Stdout: "", Stderr: err.Error(), ExitCode: 1}
	}

	stdout := res.Output
	if stdout == "" && res.CmdID != "" {
		var sb strings.Builder
		if logErr := e.ws.Process().GetSessionCommandLogs(ctx, sessionID, res.CmdID, func(chunk string) {
			sb.WriteString(chunk)
		}); logErr == nil {
			stdout = sb.String()
		}
	}

	stdout, stderr := stdout, res.Error
	if e.preview != nil {
		stdout, stderr = e.preview.Annotate(ctx, prepared, stdout, stderr)
	}

	return execresult.Result{Stdout: stdout, Stderr: stderr, ExitCode: res.ExitCode}
}

// acquireSession returns the remote session id for key, creating one if
// necessary. Acquisition is single-flighted per key so two concurrent
// Exec calls on a never-seen workdir create at most one remote session.
func (e *Executor) acquireSession(ctx context.Context, key string) (string, error) {
	if entry, ok := e.sessions.Get(key); ok {
		e.sessions.Touch(key, time.Now())
		return entry.SessionID, nil
	}

	result, err, _ := e.flight.Do(key, func() (interface{}, error) {
		if entry, ok := e.sessions.Get(key); ok {
			return entry.SessionID, nil
		}

		sessionID := fmt.Sprintf("exec-session-%s-%d", sanitize(key), time.Now().UnixMilli())
		proc := e.ws.Process()

		if err := proc.CreateSession(ctx, sessionID); err != nil && err != remoteclient.ErrAlreadyExists {
			if err2 := proc.CreateSession(ctx, defaultSessionID); err2 != nil && err2 != remoteclient.ErrAlreadyExists {
				return "", err2
			}
			sessionID = defaultSessionID
		}

		e.sessions.Put(key, sessionID, time.Now())
		if e.metrics != nil {
			e.metrics.SessionsCreated.Inc()
			e.metrics.ActiveSessions.Set(float64(e.sessions.Len()))
		}
		return sessionID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

func sanitize(key string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(key, "-"), "-")
}

func (e *Executor) preflightHomeDaytona(ctx context.Context, cmd []string) {
	needsCheck := false
	for _, arg := range cmd {
		if strings.Contains(arg, "/home/daytona") {
			needsCheck = true
			break
		}
	}
	if !needsCheck {
		return
	}

	proc := e.ws.Process()
	res, err := proc.ExecuteCommand(ctx, `test -d /home/daytona && echo exists || echo missing`, "", nil, 5)
	if err != nil || res == nil || strings.Contains(res.Output, "exists") {
		return
	}

	if err := e.ws.FS().CreateFolder(ctx, "/home/daytona"); err != nil {
		_, _ = proc.ExecuteCommand(ctx, `mkdir -p /home/daytona`, "", nil, 5)
	}
}
