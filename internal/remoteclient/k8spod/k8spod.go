// Package k8spod implements remoteclient.Client by provisioning the
// ephemeral workspace as a Kubernetes Pod in a dedicated namespace
// instead of calling an external SaaS control plane. Create waits for
// the Pod to become Ready; process operations stream through
// client-go's pods/exec subresource; filesystem operations are framed as
// tar-over-exec uploads and downloads, since a bare Pod exposes no
// separate file-transfer API.
package k8spod

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	remotecommand "k8s.io/client-go/tools/remotecommand"

	"github.com/nkkko/sandboxcore/internal/errs"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

const (
	// workspaceLabel tags every Pod this backend creates, so an external
	// cleanup sweep can find them by label selector; Remove itself
	// deletes the Pod by name.
	workspaceLabel = "sandboxcore.io/workspace"
	containerName  = "sandbox"

	readyTimeout = 60 * time.Second
)

// Config configures the Kubernetes Pod backend.
type Config struct {
	Namespace string
	Image     string // sandbox container image; defaults to "daytonaio/sandbox:latest"
	RootDir   string // workspace root inside the container; defaults to /home/daytona
}

// Client provisions sandbox workspaces as Kubernetes Pods.
type Client struct {
	cfg    Config
	client kubernetes.Interface
	rest   *rest.Config
}

// New builds a Client from an in-cluster or kubeconfig-resolved rest.Config.
func New(cfg Config, restCfg *rest.Config) (*Client, error) {
	if cfg.Image == "" {
		cfg.Image = "daytonaio/sandbox:latest"
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "/home/daytona"
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("k8spod: build clientset: %w", err)
	}
	return &Client{cfg: cfg, client: clientset, rest: restCfg}, nil
}

// Create launches a Pod running the sandbox image and waits for it to
// become Ready.
func (c *Client) Create(ctx context.Context, opts remoteclient.CreateOptions) (remoteclient.Workspace, error) {
	name := fmt.Sprintf("sandbox-%d", time.Now().UnixNano())

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: c.cfg.Namespace,
			Labels:    map[string]string{workspaceLabel: "true"},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    containerName,
					Image:   c.cfg.Image,
					Command: []string{"sleep", "infinity"},
				},
			},
		},
	}

	created, err := c.client.CoreV1().Pods(c.cfg.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, &errs.InitError{Msg: "k8spod: create pod failed", Err: err}
	}

	if err := c.waitReady(ctx, created.Name); err != nil {
		return nil, &errs.InitError{Msg: "k8spod: pod never became ready", Err: err}
	}

	return &workspace{client: c, name: created.Name}, nil
}

// Remove deletes the Pod backing ws.
func (c *Client) Remove(ctx context.Context, ws remoteclient.Workspace) error {
	w, ok := ws.(*workspace)
	if !ok {
		return fmt.Errorf("k8spod: remove: not a k8spod workspace")
	}
	err := c.client.CoreV1().Pods(c.cfg.Namespace).Delete(ctx, w.name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) waitReady(ctx context.Context, name string) error {
	return wait.PollUntilContextTimeout(ctx, time.Second, readyTimeout, true, func(ctx context.Context) (bool, error) {
		pod, err := c.client.CoreV1().Pods(c.cfg.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
				return true, nil
			}
		}
		return false, nil
	})
}

// exec runs command inside the Pod via the pods/exec subresource and
// collects stdout/stderr.
func (c *Client) exec(ctx context.Context, podName string, command []string) (stdout, stderr string, exitCode int, err error) {
	req := c.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(podName).
		Namespace(c.cfg.Namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: containerName,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.rest, "POST", req.URL())
	if err != nil {
		return "", "", -1, fmt.Errorf("k8spod: build executor: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	streamErr := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &outBuf,
		Stderr: &errBuf,
	})

	exitCode = 0
	if streamErr != nil {
		if codeErr, ok := streamErr.(exec_CodeExitError); ok {
			exitCode = codeErr.ExitStatus()
		} else {
			return outBuf.String(), errBuf.String(), -1, streamErr
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// exec_CodeExitError mirrors client-go's internal exec.CodeExitError
// interface shape without importing its unexported type directly.
type exec_CodeExitError interface {
	error
	ExitStatus() int
}

type workspace struct {
	client *Client
	name   string
}

func (w *workspace) ID() string { return w.name }

func (w *workspace) GetUserRootDir(ctx context.Context) (string, error) {
	return w.client.cfg.RootDir, nil
}

func (w *workspace) FS() remoteclient.FS { return &fs{ws: w} }

func (w *workspace) Process() remoteclient.Process { return &process{ws: w} }

func (w *workspace) GetPreviewLink(ctx context.Context, port int) (*remoteclient.PreviewLink, error) {
	// A bare Pod has no native ingress/preview API; the Response
	// Post-Processor synthesizes a URL for this backend instead.
	return nil, remoteclient.ErrNotSupported
}

type fs struct{ ws *workspace }

func (f *fs) CreateFolder(ctx context.Context, path string) error {
	_, stderr, code, err := f.ws.client.exec(ctx, f.ws.name, []string{"mkdir", "-p", path})
	return checkExecResult(code, stderr, err)
}

func (f *fs) DeleteFile(ctx context.Context, path string) error {
	_, stderr, code, err := f.ws.client.exec(ctx, f.ws.name, []string{"rm", "-f", path})
	return checkExecResult(code, stderr, err)
}

// UploadFile streams content into the Pod as a single-entry tar archive
// piped to "tar -xf - -C /", the same tar-over-exec technique used to
// move files in and out of a Pod with no sidecar file-transfer API.
func (f *fs) UploadFile(ctx context.Context, path string, content []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: strings.TrimPrefix(path, "/"),
		Mode: 0644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("k8spod: tar header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("k8spod: tar write: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("k8spod: tar close: %w", err)
	}

	return f.execWithStdin(ctx, []string{"tar", "-xf", "-", "-C", "/"}, &buf)
}

func (f *fs) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	stdout, stderr, code, err := f.ws.client.exec(ctx, f.ws.name,
		[]string{"tar", "-cf", "-", "-C", "/", strings.TrimPrefix(path, "/")})
	if err != nil {
		return nil, fmt.Errorf("k8spod: download %s: %w", path, err)
	}
	if code != 0 {
		if isNotFoundStderr(stderr) {
			return nil, remoteclient.ErrNotFound
		}
		return nil, fmt.Errorf("k8spod: download %s: exit %d: %s", path, code, stderr)
	}

	tr := tar.NewReader(strings.NewReader(stdout))
	if _, err := tr.Next(); err != nil {
		return nil, fmt.Errorf("k8spod: empty tar stream for %s: %w", path, err)
	}
	return io.ReadAll(tr)
}

// isNotFoundStderr recognizes tar and the shell's own reports of a
// missing source path so DownloadFile can turn them into ErrNotFound
// instead of a generic exec failure.
func isNotFoundStderr(stderr string) bool {
	return strings.Contains(stderr, "No such file or directory") ||
		strings.Contains(stderr, "Cannot stat")
}

func (f *fs) execWithStdin(ctx context.Context, command []string, stdin io.Reader) error {
	req := f.ws.client.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(f.ws.name).
		Namespace(f.ws.client.cfg.Namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: containerName,
			Command:   command,
			Stdin:     true,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(f.ws.client.rest, "POST", req.URL())
	if err != nil {
		return fmt.Errorf("k8spod: build executor: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: &outBuf,
		Stderr: &errBuf,
	})
	if err != nil {
		return fmt.Errorf("k8spod: exec with stdin: %w: %s", err, errBuf.String())
	}
	return nil
}

type process struct{ ws *workspace }

func (p *process) ExecuteCommand(ctx context.Context, cmd, workdir string, env map[string]string, timeoutSec int) (*remoteclient.CommandResult, error) {
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}
	full := wrapWithEnvAndDir(cmd, workdir, env)
	stdout, stderr, code, err := p.ws.client.exec(ctx, p.ws.name, []string{"/bin/sh", "-c", full})
	if err != nil {
		return nil, err
	}
	return &remoteclient.CommandResult{Output: stdout, Error: stderr, ExitCode: code}, nil
}

// CreateSession is a no-op for this backend: a Pod's exec shell sessions
// are each a fresh /bin/sh -c invocation, so there is no persistent
// remote session object to create. Callers route every
// ExecuteSessionCommand against a logical sessionID with a working
// directory tracked only locally.
func (p *process) CreateSession(ctx context.Context, id string) error {
	return nil
}

func (p *process) ExecuteSessionCommand(ctx context.Context, id string, req remoteclient.SessionCommandRequest) (*remoteclient.SessionCommandResult, error) {
	if req.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
		defer cancel()
	}
	stdout, stderr, code, err := p.ws.client.exec(ctx, p.ws.name, []string{"/bin/sh", "-c", req.Command})
	if err != nil {
		return nil, err
	}
	return &remoteclient.SessionCommandResult{Output: stdout, Error: stderr, ExitCode: code}, nil
}

func (p *process) GetSessionCommandLogs(ctx context.Context, id, cmdID string, onChunk func(string)) error {
	// Exec output is always returned inline by exec; no cmdID is ever
	// issued, so this path is never taken against this backend.
	return nil
}

func (p *process) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func wrapWithEnvAndDir(cmd, workdir string, env map[string]string) string {
	var sb strings.Builder
	for k, v := range env {
		fmt.Fprintf(&sb, "export %s=%q; ", k, v)
	}
	if workdir != "" {
		fmt.Fprintf(&sb, "cd %q && ", workdir)
	}
	sb.WriteString(cmd)
	return sb.String()
}

func checkExecResult(exitCode int, stderr string, err error) error {
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("exit %d: %s", exitCode, stderr)
	}
	return nil
}
