package pathmap

import "testing"

func TestSimpleFilename(t *testing.T) {
	m := New("/home/daytona", "/Users/alice")
	if got := m.Map("a.py"); got != "/home/daytona/a.py" {
		t.Errorf("got %q", got)
	}
}

func TestHostHomeRelative(t *testing.T) {
	m := New("/home/daytona", "/Users/alice")
	got := m.Map("/Users/alice/project/a.py")
	want := "/home/daytona/project/a.py"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDaytonaPassthrough(t *testing.T) {
	m := New("/home/daytona", "/Users/alice")
	got := m.Map("/home/daytona/already/remote.txt")
	if got != "/home/daytona/already/remote.txt" {
		t.Errorf("expected pass-through, got %q", got)
	}
}

func TestUnknownAbsoluteStripsSystemPrefix(t *testing.T) {
	m := New("/home/daytona", "/Users/alice")
	got := m.Map("/usr/local/bin/tool")
	want := "/home/daytona/local/bin/tool"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStable(t *testing.T) {
	m := New("/home/daytona", "/Users/alice")
	first := m.Map("/Users/alice/x.py")
	second := m.Map("/Users/alice/x.py")
	if first != second {
		t.Errorf("mapPath not stable: %q != %q", first, second)
	}
	if m.Len() != 1 {
		t.Errorf("expected single cache entry, got %d", m.Len())
	}
}

func TestClear(t *testing.T) {
	m := New("/home/daytona", "/Users/alice")
	m.Map("a.py")
	m.Clear()
	if m.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", m.Len())
	}
}
