// Package metrics defines the client-side Prometheus metrics of the billsight
// client. It is the single source of truth for metric names, labels, and help
// strings. All metrics are registered with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billsight"

// ── Submission metrics ────────────────────────────────────────────────────────

// SubmissionsTotal counts finished submission runs.
// Labels:
//   - kind: "single" or "analysis"
//   - outcome: "success", "error", or "stale" (result discarded after a reset)
var SubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Total number of submission runs, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// SubmissionDuration measures a run from dispatch to terminal stage.
// Label:
//   - kind: "single" or "analysis"
var SubmissionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submission_duration_seconds",
		Help:      "Duration of a submission from dispatch to terminal stage.",
		Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"kind"},
)

// SubmissionsRejectedTotal counts submit calls refused by the guard.
// Label:
//   - reason: "in_flight", "not_idle", or "invalid"
var SubmissionsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_rejected_total",
		Help:      "Total number of submit calls rejected before any network call.",
	},
	[]string{"reason"},
)

// ── Upload metrics ────────────────────────────────────────────────────────────

// UploadRejectionsTotal counts candidate files refused at admission.
// Label:
//   - reason: "extension" or "size"
var UploadRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_rejections_total",
		Help:      "Total number of candidate files rejected by the upload buffer.",
	},
	[]string{"reason"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthFailuresTotal counts normalized gateway failures.
// Labels:
//   - operation: e.g. "login", "validate", "list_users"
//   - kind: the AuthError kind (e.g. "unauthorized", "conflict", "network")
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of failed gateway calls, by operation and error kind.",
	},
	[]string{"operation", "kind"},
)

// SessionClearsTotal counts session teardowns.
// Label:
//   - reason: "logout", "unauthorized", or "expired"
var SessionClearsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_clears_total",
		Help:      "Total number of times the local session was cleared.",
	},
	[]string{"reason"},
)

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for the node exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
