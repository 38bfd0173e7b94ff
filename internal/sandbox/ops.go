package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nkkko/sandboxcore/internal/archive"
	"github.com/nkkko/sandboxcore/internal/errs"
	"github.com/nkkko/sandboxcore/internal/execresult"
	"github.com/nkkko/sandboxcore/internal/execsvc"
	"github.com/nkkko/sandboxcore/internal/ledger"
	"github.com/nkkko/sandboxcore/internal/patch"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

// Exec ensures the workspace is ready,
// runs the command through the Session Executor, and best-effort records
// the outcome to the ledger/archiver before returning. An init failure
// is returned as a non-zero ExecResult whose stderr is the init error's
// text.
func (s *Service) Exec(ctx context.Context, in execsvc.Input) execresult.Result {
	start := time.Now()
	logger := telemetry.OperationLogger(s.logger, ctx, "exec")

	if err := s.ensureReady(ctx); err != nil {
		logger.Error("sandbox: exec failed to initialize workspace", slog.Any("err", err))
		return execresult.Failure(err.Error())
	}

	st := s.getState()
	res := st.executor.Exec(ctx, in)

	status := "success"
	if res.ExitCode != 0 {
		status = "error"
	}
	s.metrics.ExecTotal.WithLabelValues(status).Inc()
	s.metrics.ExecDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	s.archiveAndRecord(ctx, ledger.KindExec, summarizeCmd(in.Cmd), &res, time.Since(start))

	return res
}

// ApplyPatch parses and applies a patch against the active workspace.
func (s *Service) ApplyPatch(ctx context.Context, patchText string) execresult.Result {
	start := time.Now()
	logger := telemetry.OperationLogger(s.logger, ctx, "apply_patch")

	if err := s.ensureReady(ctx); err != nil {
		logger.Error("sandbox: applyPatch failed to initialize workspace", slog.Any("err", err))
		return execresult.Failure(err.Error())
	}

	st := s.getState()
	res := st.applier.Apply(ctx, patchText)

	status := "success"
	if res.ExitCode != 0 {
		status = "error"
	}
	s.metrics.PatchTotal.WithLabelValues(status).Inc()

	s.archiveAndRecord(ctx, ledger.KindPatch, "apply_patch", &res, time.Since(start))

	return res
}

// UploadFile maps hostPath to its remote location, writes content there,
// and verifies the write landed via a test -f probe, falling back to an
// echo redirect when the upload reports success but the file is still
// missing, mirroring the Patch Applier's Add operation.
func (s *Service) UploadFile(ctx context.Context, hostPath string, content []byte) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	st := s.getState()
	remote := st.mapper.Map(hostPath)
	if err := st.ws.FS().CreateFolder(ctx, parentDir(remote)); err != nil {
		s.logger.Warn("sandbox: uploadFile folder create failed", slog.String("path", remote), slog.Any("err", err))
	}
	if err := st.ws.FS().UploadFile(ctx, remote, content); err != nil {
		return &errs.TransientRemoteError{Op: "uploadFile", Err: err}
	}

	if patch.VerifyFileExists(ctx, st.ws, remote) {
		return nil
	}
	if err := patch.EchoFallback(ctx, st.ws, remote, string(content)); err != nil {
		return &errs.TransientRemoteError{Op: "uploadFile", Err: err}
	}
	return nil
}

// DownloadFile reads the file at the mapped remote location, returning
// an empty, non-error result when the remote reports the file absent.
func (s *Service) DownloadFile(ctx context.Context, hostPath string) ([]byte, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	st := s.getState()
	remote := st.mapper.Map(hostPath)
	content, err := st.ws.FS().DownloadFile(ctx, remote)
	if err != nil {
		if errors.Is(err, remoteclient.ErrNotFound) {
			return []byte{}, nil
		}
		return nil, &errs.TransientRemoteError{Op: "downloadFile", Err: err}
	}
	return content, nil
}

// GetPreviewLink asks the
// active backend for a native preview link and, when the backend has
// none, falls back to the same synthesized
// https://{port}-{id}.{id[0:6]}.daytona.work URL (token "auth-required")
// that the Response Post-Processor uses.
func (s *Service) GetPreviewLink(ctx context.Context, port int) (remoteclient.PreviewLink, error) {
	if err := s.ensureReady(ctx); err != nil {
		return remoteclient.PreviewLink{}, err
	}
	st := s.getState()
	link, err := st.ws.GetPreviewLink(ctx, port)
	if err == nil && link != nil {
		return *link, nil
	}
	id := st.ws.ID()
	prefix := id
	if len(id) > 6 {
		prefix = id[:6]
	}
	return remoteclient.PreviewLink{
		URL:   fmt.Sprintf("https://%d-%s.%s.daytona.work", port, id, prefix),
		Token: "auth-required",
	}, nil
}

func (s *Service) archiveAndRecord(ctx context.Context, kind ledger.Kind, summary string, res *execresult.Result, duration time.Duration) {
	if s.ledgerBackend == nil && s.archiver == nil {
		return
	}
	entry := ledger.Entry{
		ID:            ledger.NewID(),
		CorrelationID: telemetry.CorrelationID(ctx),
		Kind:          kind,
		Summary:       summary,
		ExitCode:      res.ExitCode,
		DurationMs:    duration.Milliseconds(),
		CreatedAt:     time.Now(),
	}

	if ref, archived := archive.MaybeArchive(ctx, s.archiver, entry.ID, "stdout", res.Stdout, archive.DefaultThreshold); archived {
		res.Stdout = ref
	}
	if ref, archived := archive.MaybeArchive(ctx, s.archiver, entry.ID, "stderr", res.Stderr, archive.DefaultThreshold); archived {
		res.Stderr = ref
	}

	if s.ledgerBackend == nil {
		return
	}
	if err := s.ledgerBackend.Append(ctx, entry); err != nil {
		s.metrics.LedgerWriteErrors.Inc()
		s.logger.Warn("sandbox: ledger write failed", slog.Any("err", err))
	}
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i <= 0 {
		return "/"
	}
	return path[:i]
}
