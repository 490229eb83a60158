package metrics

import (
	"errors"
	"time"

	"bookmark-reconciler/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Recorder exports engine activity as prometheus metrics.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	plans      *prometheus.CounterVec
}

var _ reconcile.Recorder = (*Recorder)(nil)

// NewRecorder registers the reconciliation metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_operations_total",
			Help: "Executed reconciliation operations by type and outcome",
		}, []string{"type", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reconcile_operation_duration_seconds",
			Help:    "Duration of reconciliation operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"type"}),
		plans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_plans_total",
			Help: "Computed reconciliation plans by strategy and complexity",
		}, []string{"strategy", "complexity"}),
	}
}

// RecordPlan counts a computed plan.
func (r *Recorder) RecordPlan(strategy reconcile.StrategyType, complexity reconcile.Complexity, _ int) {
	r.plans.WithLabelValues(string(strategy), string(complexity)).Inc()
}

// RecordOperation counts an operation outcome. Operations skipped because a
// dependency failed are not timed.
func (r *Recorder) RecordOperation(opType reconcile.OperationType, err error, elapsed time.Duration) {
	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, reconcile.ErrDependencyFailed):
		r.operations.WithLabelValues(string(opType), OutcomeSkipped).Inc()
		return
	case err != nil:
		outcome = OutcomeFailure
	}
	r.operations.WithLabelValues(string(opType), outcome).Inc()
	r.duration.WithLabelValues(string(opType)).Observe(elapsed.Seconds())
}

// Handler serves the metrics of g in the prometheus exposition format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
