package daytona

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

func TestCreateAndGetUserRootDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/workspace":
			json.NewEncoder(w).Encode(createWorkspaceResponse{ID: "ws-123"})
		case r.Method == http.MethodGet && r.URL.Path == "/workspace/ws-123/files/userRootDir":
			json.NewEncoder(w).Encode(map[string]string{"dir": "/home/daytona/project"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", APIURL: srv.URL})
	ctx := context.Background()

	ws, err := client.Create(ctx, remoteclient.CreateOptions{AutoStopInterval: 15})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ws.ID() != "ws-123" {
		t.Errorf("unexpected id: %q", ws.ID())
	}

	root, err := ws.GetUserRootDir(ctx)
	if err != nil {
		t.Fatalf("get root dir: %v", err)
	}
	if root != "/home/daytona/project" {
		t.Errorf("unexpected root dir: %q", root)
	}
}

func TestGetPreviewLinkFallsBackToNotSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", APIURL: srv.URL})
	ws := &workspace{client: client, id: "ws-1"}

	_, err := ws.GetPreviewLink(context.Background(), 5000)
	if err != remoteclient.ErrNotSupported {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestRemoveWorkspace(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", APIURL: srv.URL})
	ws := &workspace{client: client, id: "ws-9"}

	if err := client.Remove(context.Background(), ws); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if gotPath != "/workspace/ws-9" {
		t.Errorf("unexpected path: %q", gotPath)
	}
}
