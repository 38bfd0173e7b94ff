package preview

import (
	"context"
	"strings"
	"testing"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

func TestDetectServer(t *testing.T) {
	cases := map[string]bool{
		"cd /root && python app.py":    true,
		"cd /root && python3 app.py":   true,
		"cd /root && node server.js":   true,
		"cd /root && npm run dev":      true,
		"cd /root && echo hello":       false,
		"cd /root && python train.py":  false,
	}
	for cmd, want := range cases {
		if got := DetectServer(cmd); got != want {
			t.Errorf("DetectServer(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestResolvePortRunningOnTakesPriority(t *testing.T) {
	stdout := "Running on http://127.0.0.1:5050\nPress CTRL+C to quit"
	if got := ResolvePort("python app.py", stdout); got != 5050 {
		t.Errorf("got %d, want 5050", got)
	}
}

func TestResolvePortFallsBackToFrameworkDefault(t *testing.T) {
	if got := ResolvePort("flask run", ""); got != 5000 {
		t.Errorf("got %d, want 5000", got)
	}
	if got := ResolvePort("rails server", ""); got != 3000 {
		t.Errorf("got %d, want 3000", got)
	}
	if got := ResolvePort("node index.js", ""); got != 8000 {
		t.Errorf("got %d, want 8000", got)
	}
}

func TestResolvePortFromFlag(t *testing.T) {
	if got := ResolvePort("node index.js --port=9090", ""); got != 9090 {
		t.Errorf("got %d, want 9090", got)
	}
}

func TestAnnotateNonServerCommandPassesThrough(t *testing.T) {
	r := &Resolver{WorkspaceID: "abc123", GetPreviewLink: func(ctx context.Context, port int) (*remoteclient.PreviewLink, error) {
		t.Fatalf("GetPreviewLink should not be called for a non-server command")
		return nil, nil
	}}
	stdout, stderr := r.Annotate(context.Background(), "echo hi", "hi\n", "")
	if stdout != "hi\n" || stderr != "" {
		t.Errorf("unexpected annotation: stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestAnnotateSynthesizesLinkWhenNotSupported(t *testing.T) {
	r := &Resolver{WorkspaceID: "abcdefgh", GetPreviewLink: func(ctx context.Context, port int) (*remoteclient.PreviewLink, error) {
		return nil, remoteclient.ErrNotSupported
	}}
	stdout, stderr := r.Annotate(context.Background(), "python app.py", "", "")
	if !strings.Contains(stdout, "====== PREVIEW LINK ======") {
		t.Errorf("expected a preview banner, got %q", stdout)
	}
	if !strings.Contains(stderr, "PREVIEW LINK: https://5000-abcdefgh.abcdef.daytona.work") {
		t.Errorf("expected a synthesized link in stderr, got %q", stderr)
	}
}

func TestAnnotatePrefersNativeLink(t *testing.T) {
	r := &Resolver{WorkspaceID: "abcdefgh", GetPreviewLink: func(ctx context.Context, port int) (*remoteclient.PreviewLink, error) {
		return &remoteclient.PreviewLink{URL: "https://native.example.com", Token: "tok"}, nil
	}}
	stdout, _ := r.Annotate(context.Background(), "flask run", "", "")
	if !strings.Contains(stdout, "https://native.example.com") {
		t.Errorf("expected native link in banner, got %q", stdout)
	}
}
