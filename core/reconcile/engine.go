package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine computes and executes reconciliation plans. An Engine holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	mutator  Mutator
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithIDGenerator overrides the operation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates an engine applying plans through m. A nil mutator yields an
// engine that can only compute diffs.
func NewEngine(m Mutator, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		mutator:  m,
		cfg:      cfg.withDefaults(),
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ComputeDiff returns the plan transforming original into target. Every node of
// original must carry an id; target nodes without an id are created.
func (e *Engine) ComputeDiff(original, target []Node) (*DiffResult, error) {
	if err := validateTree("original", original, true); err != nil {
		return nil, err
	}
	if err := validateTree("target", target, false); err != nil {
		return nil, err
	}

	f := &finder{
		original:              flatten(original),
		target:                flatten(assignProvisionalIDs(target)),
		moveCollapseThreshold: e.cfg.MoveCollapseThreshold,
		newID:                 e.newID,
	}
	ops := optimize(f.settle(f.findOperations()), f.original, e.cfg.MergeUpdates)
	stats, strategy := classify(ops)
	if ops == nil {
		ops = []Operation{}
	}

	e.recorder.RecordPlan(strategy.Type, stats.Complexity, stats.TotalOperations)
	e.logger.Info("Computed reconciliation plan",
		zap.Int("operations", stats.TotalOperations),
		zap.Int("estimated_cost", stats.EstimatedTime),
		zap.Int("api_calls", stats.APICalls),
		zap.String("complexity", string(stats.Complexity)),
		zap.String("strategy", string(strategy.Type)),
	)

	return &DiffResult{
		Operations: ops,
		Stats:      stats,
		Strategy:   strategy,
	}, nil
}

// ExecuteDiff applies a plan. Per-operation failures are reported in the result
// and never returned as an error. An error is returned when the plan cannot be
// executed at all or when ctx ends the run; in the latter case the partial
// result is returned alongside it.
func (e *Engine) ExecuteDiff(ctx context.Context, diff *DiffResult, progress ProgressFunc) (*ExecutionResult, error) {
	if e.mutator == nil {
		return nil, ErrNoMutator
	}
	if diff == nil {
		return nil, fmt.Errorf("execute: nil plan")
	}

	switch diff.Strategy.Type {
	case StrategyIncremental, StrategyBatch:
	case StrategyRebuild:
		return nil, &UnsupportedStrategyError{Strategy: StrategyRebuild, Reason: diff.Strategy.Reason}
	default:
		return nil, &UnsupportedStrategyError{Strategy: diff.Strategy.Type, Reason: "unknown strategy"}
	}

	e.logger.Info("Executing reconciliation plan",
		zap.String("strategy", string(diff.Strategy.Type)),
		zap.Int("operations", len(diff.Operations)),
	)

	ex := newExecutor(e.mutator, e.cfg, e.logger, e.recorder, progress, diff.Operations)
	result, err := ex.run(ctx, diff.Strategy.Type, diff.Operations)

	fields := []zap.Field{
		zap.Bool("success", result.Success),
		zap.Int("executed", result.ExecutedOperations),
		zap.Int("failed", result.FailedOperations),
		zap.Duration("total_time", result.TotalTime),
		zap.Int64("api_calls", result.Performance.APICallsActual),
	}
	switch {
	case err != nil:
		e.logger.Warn("Reconciliation interrupted", append(fields, zap.Error(err))...)
	case !result.Success:
		e.logger.Warn("Reconciliation partially applied", fields...)
	default:
		e.logger.Info("Reconciliation applied", fields...)
	}
	return result, err
}
