// Package observability holds the process-wide Prometheus metrics and the
// structured logger setup.
//
// Metrics are registered once with promauto on the default registry and
// served by the API's /metrics endpoint.
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Logging
// ═══════════════════════════════════════════════════════════════════════════

// NewLogger builds a slog logger writing to w. level is one of
// debug, info, warn, error (default info).
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Action Metrics ─────────────────────────────────────────────────────────

// ActionsResolved counts resolve calls by outcome: found, empty, or the
// error kind that rejected them.
var ActionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "outpost",
	Subsystem: "actions",
	Name:      "resolved_total",
	Help:      "Resolve calls by outcome.",
}, []string{"action", "outcome"})

// EnergyCharged sums the energy debited by committed actions.
var EnergyCharged = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "outpost",
	Subsystem: "actions",
	Name:      "energy_charged_total",
	Help:      "Total energy debited by resolved actions.",
})

// VersionConflicts counts optimistic-concurrency misses on actor writes.
var VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "outpost",
	Subsystem: "actions",
	Name:      "version_conflicts_total",
	Help:      "Actor compare-and-set misses during resolution.",
})

// ResolveLatency tracks resolve wall time in milliseconds.
var ResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "outpost",
	Subsystem: "actions",
	Name:      "resolve_latency_ms",
	Help:      "Resolve latency in milliseconds.",
	Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
})

// ─── Reward Metrics ─────────────────────────────────────────────────────────

// RewardsDrawn counts reward draws by rarity tier.
var RewardsDrawn = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "outpost",
	Subsystem: "rewards",
	Name:      "drawn_total",
	Help:      "Reward items drawn by rarity.",
}, []string{"rarity"})

// ─── Story Metrics ──────────────────────────────────────────────────────────

// MilestoneTriggers counts trigger attempts by result reason.
var MilestoneTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "outpost",
	Subsystem: "story",
	Name:      "trigger_attempts_total",
	Help:      "Milestone trigger attempts by reason.",
}, []string{"reason"})

// MilestonesCompleted counts milestones moved to COMPLETED.
var MilestonesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "outpost",
	Subsystem: "story",
	Name:      "completed_total",
	Help:      "Milestones completed across all sessions.",
})

// ObserveResolve records one resolve call.
func ObserveResolve(action, outcome string, cost int, started time.Time) {
	ActionsResolved.WithLabelValues(action, outcome).Inc()
	if cost > 0 {
		EnergyCharged.Add(float64(cost))
	}
	ResolveLatency.Observe(float64(time.Since(started).Microseconds()) / 1000)
}
