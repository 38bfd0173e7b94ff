package config

import (
	"testing"

	"github.com/nkkko/sandboxcore/internal/testutil"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestFromEnvMissingKey(t *testing.T) {
	t.Setenv(envAPIKey, "")
	_, err := FromEnv()
	testutil.AssertErrorContains(t, err, envAPIKey)
}

func TestFromEnvInvalidKey(t *testing.T) {
	withEnv(t, map[string]string{envAPIKey: "not a valid key!"})
	_, err := FromEnv()
	testutil.AssertErrorContains(t, err, "does not match")
}

func TestFromEnvDefaults(t *testing.T) {
	withEnv(t, map[string]string{envAPIKey: "abc-123_def.ghi"})
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Target != defaultTarget {
		t.Errorf("target = %q, want %q", cfg.Target, defaultTarget)
	}
	if cfg.AutoStopInterval != defaultAutoStopInterval {
		t.Errorf("autoStopInterval = %d, want %d", cfg.AutoStopInterval, defaultAutoStopInterval)
	}
	if cfg.ReaperEnabled() != true {
		t.Errorf("expected reaper enabled by default")
	}
}

func TestFromEnvAutoStopZeroDisablesReaper(t *testing.T) {
	withEnv(t, map[string]string{envAPIKey: "abc", envAutoStopInterval: "0"})
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReaperEnabled() {
		t.Errorf("expected reaper disabled when auto-stop interval is 0")
	}
}

func TestKubernetesBackendSelection(t *testing.T) {
	withEnv(t, map[string]string{envAPIKey: "abc", envAPIURL: "k8s://sandboxes"})
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsKubernetesBackend() {
		t.Fatalf("expected kubernetes backend to be selected")
	}
	if cfg.KubernetesNamespace() != "sandboxes" {
		t.Errorf("namespace = %q, want %q", cfg.KubernetesNamespace(), "sandboxes")
	}
}

func TestLeaseEndpointsParsed(t *testing.T) {
	withEnv(t, map[string]string{envAPIKey: "abc", envLeaseEndpoints: "http://a:2379, http://b:2379"})
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.LeaseEndpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %v", cfg.LeaseEndpoints)
	}
}
