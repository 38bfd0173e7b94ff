// Package main is the entry point for the sandboxctl CLI, a thin,
// stateless binding over one *sandbox.Service for interactive and
// scripted use.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/nkkko/sandboxcore/internal/archive"
	"github.com/nkkko/sandboxcore/internal/config"
	"github.com/nkkko/sandboxcore/internal/ledger"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/remoteclient/daytona"
	"github.com/nkkko/sandboxcore/internal/remoteclient/k8spod"
	"github.com/nkkko/sandboxcore/internal/sandbox"
	"github.com/nkkko/sandboxcore/internal/secrets"
	"github.com/nkkko/sandboxcore/internal/telemetry"

	k8srest "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const version = "0.1.0"

var (
	verbose       bool
	correlationID string
	metricsAddr   string

	svc      *sandbox.Service
	metrics  *telemetry.Metrics
	redactor *secrets.RedactFilter
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sandboxctl",
		Short: "Drive a remote sandbox workspace from the command line",
		Long: `sandboxctl exposes the sandbox core's five operations (exec,
apply-patch, upload, download, and preview-link) plus cleanup, over
the same Service a linked-in caller or the MCP server would use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildService()
			if err != nil {
				return err
			}
			svc = built
			svc.InstallSignalHandlers()
			if metricsAddr != "" {
				serveMetrics(metricsAddr)
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set an explicit correlation ID")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090); disabled when empty")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newExecCmd())
	root.AddCommand(newApplyPatchCmd())
	root.AddCommand(newUploadCmd())
	root.AddCommand(newDownloadCmd())
	root.AddCommand(newPreviewLinkCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(newServeMCPCmd())

	return root
}

// buildService resolves Config from the environment and wires the
// active RemoteClient backend, ledger, and archiver.
func buildService() (*sandbox.Service, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	redactor = secrets.NewRedactFilter(base)
	redactor.AddSecret(cfg.APIKey)
	logger := slog.New(redactor)

	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	metrics = telemetry.NewMetrics()
	opts := sandbox.Options{
		Logger:        logger,
		Metrics:       metrics,
		LedgerBackend: buildLedgerBackend(cfg),
		Archiver:      buildArchiver(cfg),
	}
	return sandbox.New(cfg, client, opts), nil
}

// serveMetrics starts a background HTTP listener exposing the Service's
// Prometheus registry in the exposition format. Listener failures are
// logged, not fatal; metrics are an observability aid, not load-bearing.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			fmt.Fprintf(os.Stderr, "sandboxctl: metrics listener stopped: %v\n", err)
		}
	}()
}

func buildClient(cfg *config.Config) (remoteclient.Client, error) {
	if cfg.IsKubernetesBackend() {
		restCfg, err := loadKubeConfig()
		if err != nil {
			return nil, fmt.Errorf("sandboxctl: load kube config: %w", err)
		}
		return k8spod.New(k8spod.Config{Namespace: cfg.KubernetesNamespace()}, restCfg)
	}
	return daytona.New(daytona.Config{
		APIKey:           cfg.APIKey,
		APIURL:           cfg.APIURL,
		Target:           cfg.Target,
		AutoStopInterval: cfg.AutoStopInterval,
	}), nil
}

func loadKubeConfig() (*k8srest.Config, error) {
	if restCfg, err := k8srest.InClusterConfig(); err == nil {
		return restCfg, nil
	}
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

func buildLedgerBackend(cfg *config.Config) ledger.Backend {
	if cfg.LedgerDSN != "" {
		backend, err := ledger.NewPostgresBackend(context.Background(), cfg.LedgerDSN)
		if err == nil {
			return backend
		}
		fmt.Fprintf(os.Stderr, "sandboxctl: falling back to local ledger: %v\n", err)
	}
	return ledger.NewLocalBackend(".sandboxcore.ledger.json")
}

func buildArchiver(cfg *config.Config) archive.Archiver {
	if cfg.ArchiveBucket == "" {
		return nil
	}
	archiver, err := archive.NewS3Archiver(context.Background(), cfg.ArchiveBucket, cfg.AWSRegion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandboxctl: archiving disabled: %v\n", err)
		return nil
	}
	return archiver
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		msg := err.Error()
		if redactor != nil {
			msg = redactor.RedactString(msg)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		os.Exit(1)
	}
}
