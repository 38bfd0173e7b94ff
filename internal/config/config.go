// Package config resolves the sandbox core's tunables from the process
// environment. The core never reads a local dotfile or credentials store;
// every value here comes from os.Getenv.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/nkkko/sandboxcore/internal/errs"
)

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)

// Config holds the resolved environment contract for one Service.
type Config struct {
	APIKey            string
	APIURL            string
	Target            string
	AutoStopInterval  int // minutes; 0 disables auto-stop and the reaper cron

	LedgerDSN      string
	ArchiveBucket  string
	AWSRegion      string
	LeaseEndpoints []string
}

const (
	envAPIKey           = "DAYTONA_API_KEY"
	envAPIURL           = "DAYTONA_API_URL"
	envTarget           = "DAYTONA_TARGET"
	envAutoStopInterval = "DAYTONA_AUTO_STOP_INTERVAL"
	envLedgerDSN        = "SANDBOX_LEDGER_DSN"
	envArchiveBucket    = "SANDBOX_ARCHIVE_BUCKET"
	envAWSRegion        = "AWS_REGION"
	envLeaseEndpoints   = "SANDBOX_LEASE_ENDPOINTS"

	defaultTarget           = "us"
	defaultAutoStopInterval = 30
)

// FromEnv resolves a Config from the process environment. It returns a
// *errs.ConfigError for anything required and missing or invalid; this is
// the only error path callers of FromEnv should expect.
func FromEnv() (*Config, error) {
	key := os.Getenv(envAPIKey)
	if key == "" {
		return nil, &errs.ConfigError{Field: envAPIKey, Msg: "required and not set"}
	}
	if !apiKeyPattern.MatchString(key) {
		return nil, &errs.ConfigError{Field: envAPIKey, Msg: "does not match ^[A-Za-z0-9_\\-.]+$"}
	}

	target := os.Getenv(envTarget)
	if target == "" {
		target = defaultTarget
	}

	autoStop := defaultAutoStopInterval
	if v := os.Getenv(envAutoStopInterval); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &errs.ConfigError{Field: envAutoStopInterval, Msg: "must be an integer number of minutes"}
		}
		autoStop = n
	}

	var endpoints []string
	if v := os.Getenv(envLeaseEndpoints); v != "" {
		for _, e := range strings.Split(v, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				endpoints = append(endpoints, e)
			}
		}
	}

	return &Config{
		APIKey:           key,
		APIURL:           os.Getenv(envAPIURL),
		Target:           target,
		AutoStopInterval: autoStop,
		LedgerDSN:        os.Getenv(envLedgerDSN),
		ArchiveBucket:    os.Getenv(envArchiveBucket),
		AWSRegion:        os.Getenv(envAWSRegion),
		LeaseEndpoints:   endpoints,
	}, nil
}

// IsKubernetesBackend reports whether APIURL selects the Kubernetes Pod
// backend (a "k8s://<namespace>" value) rather than the default HTTP one.
func (c *Config) IsKubernetesBackend() bool {
	return strings.HasPrefix(c.APIURL, "k8s://")
}

// KubernetesNamespace extracts the namespace from a "k8s://<namespace>"
// APIURL. Callers must check IsKubernetesBackend first.
func (c *Config) KubernetesNamespace() string {
	return strings.TrimPrefix(c.APIURL, "k8s://")
}

// ReaperEnabled reports whether the session-reaper cron should run.
func (c *Config) ReaperEnabled() bool {
	return c.AutoStopInterval != 0
}
