// Package metrics defines and registers the Prometheus metrics for the
// taskboard API. It is the single source of truth for metric names, labels
// and help strings.
//
// Metrics are registered with the default registry through promauto when the
// package is loaded; /metrics serves them via promhttp.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sakif/taskboard/internal/apperror"
)

const namespace = "taskboard"

// Outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeUnavailable  = "unavailable"
	OutcomeError        = "error"
)

// ProcedureCallsTotal counts procedure calls.
// Labels:
//   - procedure: e.g. "tasks.create"
//   - outcome: ok, unauthorized, invalid, unavailable or error
var ProcedureCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "procedure_calls_total",
		Help:      "Total number of procedure calls, by procedure and outcome.",
	},
	[]string{"procedure", "outcome"},
)

// ProcedureDuration measures how long a procedure takes, store call included.
var ProcedureDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "procedure_duration_seconds",
		Help:      "Duration of procedure calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"procedure"},
)

// Outcome classifies err for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, apperror.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, apperror.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, apperror.ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}

// ObserveProcedure records one call of procedure that started at start and
// finished with err.
func ObserveProcedure(procedure string, start time.Time, err error) {
	ProcedureCallsTotal.WithLabelValues(procedure, Outcome(err)).Inc()
	ProcedureDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
}
