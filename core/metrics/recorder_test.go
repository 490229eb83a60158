package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"bookmark-reconciler/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordOperation(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.RecordOperation(reconcile.OpCreate, nil, 10*time.Millisecond)
	r.RecordOperation(reconcile.OpCreate, nil, 20*time.Millisecond)
	r.RecordOperation(reconcile.OpMove, errors.New("boom"), time.Millisecond)
	r.RecordOperation(reconcile.OpMove, fmt.Errorf("wrapped: %w", reconcile.ErrDependencyFailed), 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("create", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("move", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("move", OutcomeSkipped)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestRecorder_RecordPlan(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.RecordPlan(reconcile.StrategyBatch, reconcile.ComplexityMedium, 40)
	r.RecordPlan(reconcile.StrategyBatch, reconcile.ComplexityMedium, 50)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.plans.WithLabelValues("batch", "medium")))
}

func TestRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.RecordPlan(reconcile.StrategyIncremental, reconcile.ComplexityLow, 1)

	app := fiber.New()
	app.Get("/metrics", Handler(reg))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `reconcile_plans_total{complexity="low",strategy="incremental"} 1`)
}
