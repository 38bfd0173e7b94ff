// Package fake provides an in-memory/local-process implementation of
// remoteclient.Client for unit and integration tests. It does not talk to
// any network service: filesystem operations touch a temp directory and
// commands run through the host shell under a context timeout, standing
// in for the network round trip a real backend would make.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

// Client is a local-process stand-in for a real workspace provider.
type Client struct {
	mu         sync.Mutex
	CreateCalls int
}

// NewClient returns an empty fake client.
func NewClient() *Client {
	return &Client{}
}

// Create allocates a temp directory to stand in for the workspace root
// and counts the call, so tests can assert single-flight behavior.
func (c *Client) Create(ctx context.Context, opts remoteclient.CreateOptions) (remoteclient.Workspace, error) {
	c.mu.Lock()
	c.CreateCalls++
	c.mu.Unlock()

	root, err := os.MkdirTemp("", "sandboxcore-fake-*")
	if err != nil {
		return nil, fmt.Errorf("fake create: %w", err)
	}
	return &workspace{
		id:       uuid.NewString(),
		root:     root,
		sessions: make(map[string]struct{}),
	}, nil
}

// Remove tears down the workspace's temp directory.
func (c *Client) Remove(ctx context.Context, ws remoteclient.Workspace) error {
	w, ok := ws.(*workspace)
	if !ok {
		return fmt.Errorf("fake remove: not a fake workspace")
	}
	return os.RemoveAll(w.root)
}

type workspace struct {
	id   string
	root string

	mu       sync.Mutex
	sessions map[string]struct{}
}

func (w *workspace) ID() string { return w.id }

func (w *workspace) GetUserRootDir(ctx context.Context) (string, error) {
	return w.root, nil
}

func (w *workspace) FS() remoteclient.FS { return fsys{root: w.root} }

func (w *workspace) Process() remoteclient.Process { return &proc{ws: w} }

func (w *workspace) GetPreviewLink(ctx context.Context, port int) (*remoteclient.PreviewLink, error) {
	return nil, remoteclient.ErrNotSupported
}

type fsys struct{ root string }

func (f fsys) CreateFolder(ctx context.Context, path string) error {
	return os.MkdirAll(path, 0755)
}

func (f fsys) UploadFile(ctx context.Context, path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}

func (f fsys) DeleteFile(ctx context.Context, path string) error {
	return os.Remove(path)
}

func (f fsys) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, remoteclient.ErrNotFound
	}
	return content, err
}

type proc struct {
	ws *workspace
}

func (p *proc) run(ctx context.Context, cmd, workdir string, env map[string]string, timeoutSec int) (*remoteclient.CommandResult, error) {
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	c := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	if workdir != "" {
		c.Dir = workdir
	}
	c.Env = os.Environ()
	for k, v := range env {
		c.Env = append(c.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("fake exec: %w", err)
		}
	}
	return &remoteclient.CommandResult{
		Output:   stdout.String(),
		Error:    stderr.String(),
		ExitCode: exitCode,
	}, nil
}

func (p *proc) ExecuteCommand(ctx context.Context, cmd, workdir string, env map[string]string, timeoutSec int) (*remoteclient.CommandResult, error) {
	return p.run(ctx, cmd, workdir, env, timeoutSec)
}

func (p *proc) CreateSession(ctx context.Context, id string) error {
	p.ws.mu.Lock()
	defer p.ws.mu.Unlock()
	if _, exists := p.ws.sessions[id]; exists {
		return remoteclient.ErrAlreadyExists
	}
	p.ws.sessions[id] = struct{}{}
	return nil
}

func (p *proc) ExecuteSessionCommand(ctx context.Context, id string, req remoteclient.SessionCommandRequest) (*remoteclient.SessionCommandResult, error) {
	p.ws.mu.Lock()
	_, exists := p.ws.sessions[id]
	p.ws.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("fake session %q does not exist", id)
	}

	res, err := p.run(ctx, req.Command, "", nil, req.TimeoutSec)
	if err != nil {
		return nil, err
	}
	return &remoteclient.SessionCommandResult{
		Output:   res.Output,
		Error:    res.Error,
		ExitCode: res.ExitCode,
	}, nil
}

func (p *proc) GetSessionCommandLogs(ctx context.Context, id, cmdID string, onChunk func(string)) error {
	// The fake always returns full output inline; no cmdID is ever issued,
	// so this path is never taken by the session executor against it.
	return nil
}

func (p *proc) DeleteSession(ctx context.Context, id string) error {
	p.ws.mu.Lock()
	defer p.ws.mu.Unlock()
	delete(p.ws.sessions, id)
	return nil
}
