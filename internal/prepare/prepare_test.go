package prepare

import (
	"strings"
	"testing"

	"github.com/nkkko/sandboxcore/internal/pathmap"
)

func newPreparer() *Preparer {
	m := pathmap.New("/home/daytona", "/Users/alice")
	return New(m)
}

func TestPrepareNoWrapForAlnumArgv(t *testing.T) {
	p := newPreparer()
	got := p.Prepare([]string{"ls", "-la"}, "")
	want := "cd /home/daytona && ls -la"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrepareSimpleRooting(t *testing.T) {
	p := newPreparer()
	got := p.Prepare([]string{"cat", "notes.txt"}, "")
	want := "cd /home/daytona && cat /home/daytona/notes.txt"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrepareWrapsOnPipe(t *testing.T) {
	p := newPreparer()
	got := p.Prepare([]string{"ls", "|", "grep", "foo"}, "")
	if !strings.Contains(got, "/bin/sh -c") {
		t.Errorf("expected shell wrap, got %q", got)
	}
}

func TestPrepareWithWorkdir(t *testing.T) {
	p := newPreparer()
	got := p.Prepare([]string{"echo", "hi"}, "/Users/alice/project")
	if !strings.HasPrefix(got, "cd /home/daytona/project && ") {
		t.Errorf("got %q", got)
	}
}

func TestPrepareIdempotentOnAlreadyWrapped(t *testing.T) {
	already := "/bin/sh -c 'echo hi'"
	out := applyRewritesAndWrapping(already)
	if out != already {
		t.Errorf("expected no-op on already wrapped command, got %q", out)
	}
}

func TestPrepareTimeoutRewrite(t *testing.T) {
	p := newPreparer()
	got := p.Prepare([]string{"timeout", "2", "sleep", "10"}, "")
	if !strings.Contains(got, "sleep 10 & pid=$!") {
		t.Errorf("got %q", got)
	}
}
