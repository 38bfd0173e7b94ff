package patch

import (
	"context"
	"strings"
	"testing"

	"github.com/nkkko/sandboxcore/internal/pathmap"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/remoteclient/fake"
	"github.com/nkkko/sandboxcore/internal/testutil"
)

func TestParseAddFile(t *testing.T) {
	text := strings.Join([]string{
		"*** Begin Patch",
		"*** Add File: hello.py",
		`+print("hi")`,
		"*** End of File",
		"*** End Patch",
	}, "\n")

	ops, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != OpAdd || ops[0].Path != "hello.py" {
		t.Fatalf("unexpected ops: %+v", ops)
	}
	if ops[0].Content != "print(\"hi\")\n" {
		t.Errorf("unexpected content: %q", ops[0].Content)
	}
}

func TestParseRejectsMissingMarkers(t *testing.T) {
	_, err := Parse("*** Add File: a.py\n+x\n")
	if err == nil {
		t.Fatalf("expected a PatchFormatError")
	}
}

func TestParseDeleteFile(t *testing.T) {
	text := strings.Join([]string{
		"*** Begin Patch",
		"*** Delete File: old.py",
		"*** End Patch",
	}, "\n")
	ops, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != OpDelete || ops[0].Path != "old.py" {
		t.Fatalf("unexpected ops: %+v", ops)
	}
}

func TestParseUpdateFileTerminatesAddWithoutMutation(t *testing.T) {
	text := strings.Join([]string{
		"*** Begin Patch",
		"*** Add File: a.py",
		"+line one",
		"*** Update File: a.py",
		"*** End Patch",
	}, "\n")
	ops, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Content != "line one\n" {
		t.Fatalf("unexpected ops: %+v", ops)
	}
}

func TestApplyAddFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := fake.NewClient()
	ws, err := client.Create(ctx, remoteclient.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	root, _ := ws.GetUserRootDir(ctx)
	mapper := pathmap.New(root, "/Users/alice")
	applier := New(mapper, ws)

	text := strings.Join([]string{
		"*** Begin Patch",
		"*** Add File: hello.py",
		`+print("hi")`,
		"*** End of File",
		"*** End Patch",
	}, "\n")

	res := applier.Apply(ctx, text)
	testutil.AssertExecSuccess(t, res)
	if !strings.Contains(res.Stdout, "Created hello.py") {
		t.Errorf("unexpected stdout: %q", res.Stdout)
	}

	got, err := ws.FS().DownloadFile(ctx, mapper.Map("hello.py"))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(got) != "print(\"hi\")\n" {
		t.Errorf("unexpected file content: %q", got)
	}
}
