// Package metrics defines and registers all custom Prometheus metrics for the
// task service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto; the /metrics route exposes them together
// with the HTTP metrics collected by echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskboard"

// ── Task metrics ──────────────────────────────────────────────────────────────

// TasksCreatedTotal counts newly created tasks.
// Label:
//   - assigned: "true" when the task was created with assignees
var TasksCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total number of tasks created.",
	},
	[]string{"assigned"},
)

var TasksUpdatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_updated_total",
		Help:      "Total number of task updates applied.",
	},
)

var TasksDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_deleted_total",
		Help:      "Total number of tasks deleted, including their comments.",
	},
)

// IdempotentReplaysTotal counts create requests answered from a prior
// Idempotency-Key instead of inserting a new task.
var IdempotentReplaysTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_idempotent_replays_total",
		Help:      "Total number of task creations replayed from an idempotency key.",
	},
)

// ── Comment metrics ───────────────────────────────────────────────────────────

// CommentsTotal counts comment mutations.
// Label:
//   - op: "create", "update" or "delete"
var CommentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_total",
		Help:      "Total number of comment mutations, by operation.",
	},
	[]string{"op"},
)

// ── Error metrics ─────────────────────────────────────────────────────────────

// RequestErrorsTotal counts error responses rendered by the HTTP error handler.
// Label:
//   - kind: "validation", "unauthenticated", "forbidden", "not_found",
//     "conflict", "unknown_assignee", "http" or "internal"
var RequestErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_errors_total",
		Help:      "Total number of error responses, by error kind.",
	},
	[]string{"kind"},
)
