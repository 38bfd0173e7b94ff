package rewrite

import (
	"strings"
	"testing"
)

func TestTimeoutRewrite(t *testing.T) {
	facts := Facts("timeout 2 sleep 10")
	out, ok := Apply(facts)
	if !ok {
		t.Fatalf("expected timeout rule to match")
	}
	if !strings.Contains(out, "sleep 10 & pid=$!") {
		t.Errorf("unexpected rewrite: %s", out)
	}
	if !strings.Contains(out, "sleep 2;") {
		t.Errorf("expected sleep duration 2 in rewrite: %s", out)
	}
}

func TestSleepRewrite(t *testing.T) {
	facts := Facts("sleep 5")
	out, ok := Apply(facts)
	if !ok {
		t.Fatalf("expected sleep rule to match")
	}
	if out != `/bin/sh -c 'sleep 5'` {
		t.Errorf("got %q", out)
	}
}

func TestSleepWithAndAndDoesNotMatch(t *testing.T) {
	facts := Facts("sleep 5 && echo done")
	_, ok := Apply(facts)
	if ok {
		t.Errorf("expected no rule to fire on already-compound command")
	}
}

func TestNohupRewrite(t *testing.T) {
	facts := Facts("nohup myserver --port 9000")
	out, ok := Apply(facts)
	if !ok {
		t.Fatalf("expected nohup rule to match")
	}
	if !strings.Contains(out, "nohup myserver --port 9000") {
		t.Errorf("got %q", out)
	}
}

func TestPythonDashCRewrite(t *testing.T) {
	facts := Facts(`python -c print(1)`)
	out, ok := Apply(facts)
	if !ok {
		t.Fatalf("expected python -c rule to match")
	}
	if !strings.Contains(out, "python3 -c") {
		t.Errorf("got %q", out)
	}
}

func TestFlaskRewrite(t *testing.T) {
	facts := Facts("python app.py")
	out, ok := Apply(facts)
	if !ok {
		t.Fatalf("expected flask rule to match")
	}
	if !strings.Contains(out, "Flask app started with PID") {
		t.Errorf("got %q", out)
	}
}

func TestNoRuleMatchesPlainCommand(t *testing.T) {
	facts := Facts("ls -la")
	_, ok := Apply(facts)
	if ok {
		t.Errorf("expected no rule to match a plain ls")
	}
}
