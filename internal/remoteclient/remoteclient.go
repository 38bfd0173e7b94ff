// Package remoteclient defines the narrow binding this core needs against
// a workspace provider: create/remove a workspace, resolve its root
// directory, move files, and run commands in a session. Two backends
// satisfy this interface (daytona, k8spod); tests use the in-memory fake.
package remoteclient

import (
	"context"
	"errors"
)

// ErrAlreadyExists is returned by CreateSession when a session with the
// given id already exists on the remote. Callers treat this as success.
var ErrAlreadyExists = errors.New("remoteclient: already exists")

// ErrNotSupported is returned by operations a backend does not implement
// (for example, GetPreviewLink on a backend with no native preview API).
var ErrNotSupported = errors.New("remoteclient: not supported by this backend")

// ErrNotFound is returned by FS.DownloadFile when the remote path does
// not exist. Callers treat this as an empty file, not a failure.
var ErrNotFound = errors.New("remoteclient: not found")

// CreateOptions configures workspace creation.
type CreateOptions struct {
	// AutoStopInterval is the number of minutes of inactivity after which
	// the provider may stop the workspace. Zero disables auto-stop.
	AutoStopInterval int
}

// PreviewLink is a public URL that forwards to a TCP port inside the
// workspace, plus an access token if the provider requires one.
type PreviewLink struct {
	URL   string
	Token string
}

// CommandResult is the outcome of a one-shot (non-session) command.
type CommandResult struct {
	Output   string `json:"output"`
	Error    string `json:"error"`
	ExitCode int    `json:"exitCode"`
}

// SessionCommandRequest submits a command to an existing session.
type SessionCommandRequest struct {
	Command    string `json:"command"`
	Async      bool   `json:"async"`
	TimeoutSec int    `json:"timeout"`
}

// SessionCommandResult is the outcome of a session command. CmdID is
// populated when the remote supports fetching logs separately and the
// inline Output was truncated or empty.
type SessionCommandResult struct {
	Output   string `json:"output"`
	Error    string `json:"error"`
	ExitCode int    `json:"exitCode"`
	CmdID    string `json:"cmdId"`
}

// FS is the filesystem surface of a workspace.
type FS interface {
	CreateFolder(ctx context.Context, path string) error
	UploadFile(ctx context.Context, path string, content []byte) error
	DeleteFile(ctx context.Context, path string) error
	DownloadFile(ctx context.Context, path string) ([]byte, error)
}

// Process is the process/session surface of a workspace.
type Process interface {
	ExecuteCommand(ctx context.Context, cmd, workdir string, env map[string]string, timeoutSec int) (*CommandResult, error)
	CreateSession(ctx context.Context, id string) error
	ExecuteSessionCommand(ctx context.Context, id string, req SessionCommandRequest) (*SessionCommandResult, error)
	GetSessionCommandLogs(ctx context.Context, id, cmdID string, onChunk func(string)) error
	DeleteSession(ctx context.Context, id string) error
}

// Workspace is one opaque remote execution environment.
type Workspace interface {
	ID() string
	GetUserRootDir(ctx context.Context) (string, error)
	FS() FS
	Process() Process
	// GetPreviewLink returns ErrNotSupported on backends with no native
	// preview API; the response post-processor falls back to synthesis.
	GetPreviewLink(ctx context.Context, port int) (*PreviewLink, error)
}

// Client creates and destroys workspaces. Exactly one backend
// implementation is active per Config: the HTTP/Daytona backend or the
// Kubernetes Pod backend.
type Client interface {
	Create(ctx context.Context, opts CreateOptions) (Workspace, error)
	Remove(ctx context.Context, ws Workspace) error
}
