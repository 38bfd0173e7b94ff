package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for exec/patch operations, session
// lifecycle, and the ambient ledger/archiver subsystems. It owns
// its own registry rather than using the global default one, so a
// process embedding this core as a library does not collide with the
// host application's own metrics.
type Metrics struct {
	registry *prometheus.Registry

	ExecTotal          *prometheus.CounterVec
	ExecDuration       *prometheus.HistogramVec
	PatchTotal         *prometheus.CounterVec
	SessionsCreated    prometheus.Counter
	SessionsReaped     prometheus.Counter
	ActiveSessions     prometheus.Gauge
	LedgerWriteErrors  prometheus.Counter
	ArchiveWriteErrors prometheus.Counter
	InitTotal          *prometheus.CounterVec
}

// NewMetrics builds and registers the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ExecTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxcore_exec_total",
			Help: "Total exec calls by exit status bucket.",
		}, []string{"status"}),
		ExecDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sandboxcore_exec_duration_seconds",
			Help:    "Exec call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		PatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxcore_patch_total",
			Help: "Total applyPatch calls by outcome.",
		}, []string{"status"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sandboxcore_sessions_created_total",
			Help: "Total remote sessions created.",
		}),
		SessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sandboxcore_sessions_reaped_total",
			Help: "Total sessions removed by the staleness reaper.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sandboxcore_active_sessions",
			Help: "Current number of tracked remote sessions.",
		}),
		LedgerWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sandboxcore_ledger_write_errors_total",
			Help: "Ledger write failures; never affects ExecResult.",
		}),
		ArchiveWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sandboxcore_archive_write_errors_total",
			Help: "Transcript archive write failures; never affects ExecResult.",
		}),
		InitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxcore_init_total",
			Help: "Workspace initialization attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.ExecTotal, m.ExecDuration, m.PatchTotal,
		m.SessionsCreated, m.SessionsReaped, m.ActiveSessions,
		m.LedgerWriteErrors, m.ArchiveWriteErrors, m.InitTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
