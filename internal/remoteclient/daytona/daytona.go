// Package daytona implements remoteclient.Client against the Daytona
// workspace REST API over net/http, in the same control-plane/data-plane
// split the E2B provider in the retrieval pack uses: a small JSON-over-
// HTTP control-plane client creates and destroys the workspace, while
// per-workspace operations (filesystem, process) are routed to the
// workspace's own endpoints carrying its id in the path.
package daytona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nkkko/sandboxcore/internal/errs"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

const defaultHTTPTimeout = 60 * time.Second

// Config configures the Daytona HTTP backend.
type Config struct {
	APIKey           string
	APIURL           string
	Target           string
	AutoStopInterval int
}

// Client talks to the Daytona control plane.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client. cfg.APIURL must not be a "k8s://" selector; callers
// pick this backend only when config.Config.IsKubernetesBackend is false.
func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Create provisions a new Daytona workspace and returns its handle.
func (c *Client) Create(ctx context.Context, opts remoteclient.CreateOptions) (remoteclient.Workspace, error) {
	autoStop := opts.AutoStopInterval
	if autoStop == 0 {
		autoStop = c.cfg.AutoStopInterval
	}

	body := createWorkspaceRequest{
		Target:           c.cfg.Target,
		AutoStopInterval: autoStop,
	}

	var result createWorkspaceResponse
	if err := c.call(ctx, http.MethodPost, "/workspace", body, &result); err != nil {
		return nil, fmt.Errorf("daytona: create workspace: %w", err)
	}

	return &workspace{client: c, id: result.ID}, nil
}

// Remove destroys a workspace.
func (c *Client) Remove(ctx context.Context, ws remoteclient.Workspace) error {
	w, ok := ws.(*workspace)
	if !ok {
		return fmt.Errorf("daytona: remove: not a daytona workspace")
	}
	if err := c.call(ctx, http.MethodDelete, "/workspace/"+w.id, nil, nil); err != nil {
		return fmt.Errorf("daytona: remove workspace %s: %w", w.id, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errs.TransientRemoteError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("daytona API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type workspace struct {
	client *Client
	id     string
}

func (w *workspace) ID() string { return w.id }

func (w *workspace) GetUserRootDir(ctx context.Context) (string, error) {
	var result struct {
		Dir string `json:"dir"`
	}
	if err := w.client.call(ctx, http.MethodGet, "/workspace/"+w.id+"/files/userRootDir", nil, &result); err != nil {
		return "", fmt.Errorf("daytona: get user root dir: %w", err)
	}
	return result.Dir, nil
}

func (w *workspace) FS() remoteclient.FS { return &fs{ws: w} }

func (w *workspace) Process() remoteclient.Process { return &process{ws: w} }

func (w *workspace) GetPreviewLink(ctx context.Context, port int) (*remoteclient.PreviewLink, error) {
	var result struct {
		URL   string `json:"url"`
		Token string `json:"token"`
	}
	path := fmt.Sprintf("/workspace/%s/ports/%d/preview-url", w.id, port)
	if err := w.client.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, remoteclient.ErrNotSupported
	}
	return &remoteclient.PreviewLink{URL: result.URL, Token: result.Token}, nil
}

type fs struct{ ws *workspace }

func (f *fs) CreateFolder(ctx context.Context, path string) error {
	body := map[string]string{"path": path, "mode": "0755"}
	return f.ws.client.call(ctx, http.MethodPost, "/workspace/"+f.ws.id+"/files/folder", body, nil)
}

func (f *fs) UploadFile(ctx context.Context, path string, content []byte) error {
	body := map[string]string{"path": path, "content": string(content)}
	return f.ws.client.call(ctx, http.MethodPost, "/workspace/"+f.ws.id+"/files/upload", body, nil)
}

func (f *fs) DeleteFile(ctx context.Context, path string) error {
	body := map[string]string{"path": path}
	return f.ws.client.call(ctx, http.MethodDelete, "/workspace/"+f.ws.id+"/files", body, nil)
}

func (f *fs) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	var result struct {
		Content string `json:"content"`
	}
	downloadPath := fmt.Sprintf("/workspace/%s/files/download?path=%s", f.ws.id, path)
	if err := f.ws.client.call(ctx, http.MethodGet, downloadPath, nil, &result); err != nil {
		if isNotFound(err) {
			return nil, remoteclient.ErrNotFound
		}
		return nil, err
	}
	return []byte(result.Content), nil
}

type process struct{ ws *workspace }

func (p *process) ExecuteCommand(ctx context.Context, cmd, workdir string, env map[string]string, timeoutSec int) (*remoteclient.CommandResult, error) {
	body := map[string]any{
		"command": cmd,
		"cwd":     workdir,
		"env":     env,
		"timeout": timeoutSec,
	}
	var result remoteclient.CommandResult
	if err := p.ws.client.call(ctx, http.MethodPost, "/workspace/"+p.ws.id+"/process/execute", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *process) CreateSession(ctx context.Context, id string) error {
	body := map[string]string{"sessionId": id}
	err := p.ws.client.call(ctx, http.MethodPost, "/workspace/"+p.ws.id+"/process/session", body, nil)
	if err != nil && isAlreadyExists(err) {
		return remoteclient.ErrAlreadyExists
	}
	return err
}

func (p *process) ExecuteSessionCommand(ctx context.Context, id string, req remoteclient.SessionCommandRequest) (*remoteclient.SessionCommandResult, error) {
	var result remoteclient.SessionCommandResult
	path := fmt.Sprintf("/workspace/%s/process/session/%s/command", p.ws.id, id)
	if err := p.ws.client.call(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *process) GetSessionCommandLogs(ctx context.Context, id, cmdID string, onChunk func(string)) error {
	var result struct {
		Logs string `json:"logs"`
	}
	path := fmt.Sprintf("/workspace/%s/process/session/%s/command/%s/logs", p.ws.id, id, cmdID)
	if err := p.ws.client.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return err
	}
	onChunk(result.Logs)
	return nil
}

func (p *process) DeleteSession(ctx context.Context, id string) error {
	path := fmt.Sprintf("/workspace/%s/process/session/%s", p.ws.id, id)
	return p.ws.client.call(ctx, http.MethodDelete, path, nil, nil)
}

func isAlreadyExists(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "409") || strings.Contains(err.Error(), "already exists"))
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "(status 404)")
}

type createWorkspaceRequest struct {
	Target           string `json:"target,omitempty"`
	AutoStopInterval int    `json:"autoStopInterval"`
}

type createWorkspaceResponse struct {
	ID string `json:"id"`
}
