// Package reaper runs a background cron job that sweeps sessiontrack for
// session-keys unused past a staleness window and proactively deletes
// them on the remote, so idle working-directory sessions do not outlive
// their usefulness between explicit cleanup() calls. It is a pure
// resource-hygiene optimization. Staleness is measured from a
// session-key's last acquisition; a command still running on a session
// is not tracked separately. Its own failures are logged and skipped
// until the next tick.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
	"github.com/nkkko/sandboxcore/internal/sessiontrack"
	"github.com/nkkko/sandboxcore/internal/telemetry"
)

// DefaultSchedule runs the sweep every 5 minutes.
const DefaultSchedule = "@every 5m"

// DefaultStaleness is how long a session-key may sit idle before the
// reaper considers it eligible for removal.
const DefaultStaleness = 15 * time.Minute

// ProcessFunc returns the current workspace's Process binding, or false
// if the workspace is not currently initialized (in which case the sweep
// is skipped for that tick).
type ProcessFunc func() (remoteclient.Process, bool)

// Reaper periodically deletes stale remote sessions.
type Reaper struct {
	sessions  *sessiontrack.Map
	process   ProcessFunc
	staleness time.Duration
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	cron *cron.Cron
}

// New builds a Reaper. process supplies the live remote Process binding
// on each tick since the workspace may be reinitialized between ticks.
func New(sessions *sessiontrack.Map, process ProcessFunc, staleness time.Duration, metrics *telemetry.Metrics, logger *slog.Logger) *Reaper {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Reaper{
		sessions:  sessions,
		process:   process,
		staleness: staleness,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start schedules the sweep on schedule (a robfig/cron spec, e.g.
// "@every 5m") and begins running it in the background.
func (r *Reaper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(schedule, r.sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron job. Safe to call even if Start was never called.
func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *Reaper) sweep() {
	proc, ok := r.process()
	if !ok {
		return
	}

	cutoff := time.Now().Add(-r.staleness)
	stale := r.sessions.Stale(cutoff)
	if len(stale) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, entry := range stale {
		if err := proc.DeleteSession(ctx, entry.SessionID); err != nil {
			r.logger.Warn("reaper: failed to delete stale session",
				slog.String("key", entry.Key), slog.String("session_id", entry.SessionID), slog.Any("err", err))
			continue
		}
		r.sessions.Delete(entry.Key)
		if r.metrics != nil {
			r.metrics.SessionsReaped.Inc()
			r.metrics.ActiveSessions.Set(float64(r.sessions.Len()))
		}
		r.logger.Info("reaper: removed stale session",
			slog.String("key", entry.Key), slog.String("session_id", entry.SessionID))
	}
}
