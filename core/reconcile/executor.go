package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// executor applies one plan against a mutator. It is used for a single run.
type executor struct {
	mutator  *countingMutator
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
	progress ProgressFunc

	total   int
	started time.Time

	// pending holds the provisional ids this plan creates.
	pending map[string]bool

	mu       sync.Mutex
	resolved map[string]string
	failed   map[string]bool
	done     int
	naive    time.Duration
	result   ExecutionResult
}

func newExecutor(m Mutator, cfg Config, logger *zap.Logger, recorder Recorder, progress ProgressFunc, ops []Operation) *executor {
	pending := make(map[string]bool)
	for _, op := range ops {
		if op.Type == OpCreate {
			pending[op.Target.ID] = true
		}
	}
	return &executor{
		mutator:  &countingMutator{next: m},
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		progress: progress,
		total:    len(ops),
		pending:  pending,
		resolved: make(map[string]string),
		failed:   make(map[string]bool),
		result:   ExecutionResult{Errors: []OperationError{}},
	}
}

// run executes ops under the given strategy. The returned result is always
// non-nil; the error is only set when the context ended the run early.
func (e *executor) run(ctx context.Context, strategy StrategyType, ops []Operation) (*ExecutionResult, error) {
	e.started = time.Now()
	ordered := orderByDependencies(ops)

	var err error
	switch strategy {
	case StrategyBatch:
		err = e.runBatch(ctx, ordered)
	default:
		err = e.runIncremental(ctx, ordered)
	}
	return e.finish(), err
}

func (e *executor) runIncremental(ctx context.Context, ops []Operation) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return e.cancelled(err)
		}
		e.execute(ctx, op)
		e.emitProgress(op.Describe())
	}
	return nil
}

func (e *executor) runBatch(ctx context.Context, ops []Operation) error {
	for _, chunk := range buildChunks(ops, e.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return e.cancelled(err)
		}

		// Failures are recorded per operation and never cancel siblings.
		var g errgroup.Group
		g.SetLimit(e.cfg.MaxConcurrency)
		for _, op := range chunk {
			g.Go(func() error {
				e.execute(ctx, op)
				return nil
			})
		}
		_ = g.Wait()

		head := chunk[0]
		e.emitProgress(fmt.Sprintf("%d %s operations (priority %d)", len(chunk), head.Type, head.Priority))
	}
	return nil
}

func (e *executor) cancelled(err error) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	return fmt.Errorf("execution stopped after %d of %d operations: %w", done, e.total, err)
}

// execute applies one operation and records its outcome.
func (e *executor) execute(ctx context.Context, op Operation) {
	if dep := e.failedDependency(op); dep != "" {
		e.recordFailure(op, fmt.Errorf("%w: %s", ErrDependencyFailed, dep), 0)
		return
	}

	opCtx := ctx
	if timeout := e.cfg.OperationTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := e.apply(opCtx, op)
	elapsed := time.Since(start)
	e.recorder.RecordOperation(op.Type, err, elapsed)

	if err != nil {
		e.recordFailure(op, err, elapsed)
		return
	}
	e.recordSuccess(op, elapsed)
}

// apply performs the mutation calls for one operation.
func (e *executor) apply(ctx context.Context, op Operation) error {
	switch op.Type {
	case OpCreate:
		parent, err := e.resolve(op.Target.ParentID)
		if err != nil {
			return &MutationError{Operation: op, Call: "create", Err: err}
		}
		node, err := e.mutator.Create(ctx, parent, deref(op.Target.Title), deref(op.Target.URL), derefInt(op.Target.Index))
		if err != nil {
			return &MutationError{Operation: op, Call: "create", Err: err}
		}
		e.bind(op.Target.ID, node.ID)
		return nil

	case OpDelete:
		node, err := e.mutator.Get(ctx, op.NodeID)
		if err != nil {
			return &MutationError{Operation: op, Call: "get", Err: err}
		}
		if node.IsFolder() {
			if err := e.mutator.RemoveSubtree(ctx, op.NodeID); err != nil {
				return &MutationError{Operation: op, Call: "removeSubtree", Err: err}
			}
			return nil
		}
		if err := e.mutator.Remove(ctx, op.NodeID); err != nil {
			return &MutationError{Operation: op, Call: "remove", Err: err}
		}
		return nil

	case OpUpdate:
		changes := UpdateFields{Title: op.Target.Title, URL: op.Target.URL}
		if err := e.mutator.Update(ctx, op.NodeID, changes); err != nil {
			return &MutationError{Operation: op, Call: "update", Err: err}
		}
		return nil

	case OpMove:
		id, err := e.resolve(op.NodeID)
		if err != nil {
			return &MutationError{Operation: op, Call: "move", Err: err}
		}
		parent, err := e.resolve(op.Target.ParentID)
		if err != nil {
			return &MutationError{Operation: op, Call: "move", Err: err}
		}
		if err := e.mutator.Move(ctx, id, Destination{ParentID: parent, Index: op.Target.Index}); err != nil {
			return &MutationError{Operation: op, Call: "move", Err: err}
		}
		return nil

	case OpReorder:
		parent, err := e.resolve(op.Target.ParentID)
		if err != nil {
			return &MutationError{Operation: op, Call: "move", Err: err}
		}
		// Children are placed strictly in order; out of order moves shift indices.
		for i, child := range op.Target.Children {
			if err := ctx.Err(); err != nil {
				return &MutationError{Operation: op, Call: "move", Err: err}
			}
			id, err := e.resolve(child)
			if err != nil {
				return &MutationError{Operation: op, Call: "move", Err: err}
			}
			if err := e.mutator.Move(ctx, id, Destination{ParentID: parent, Index: intPtr(i)}); err != nil {
				return &MutationError{Operation: op, Call: "move", Err: fmt.Errorf("child %s: %w", id, err)}
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

// resolve maps provisional ids to the ids assigned by the backend.
func (e *executor) resolve(id string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if real, ok := e.resolved[id]; ok {
		return real, nil
	}
	if e.pending[id] {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedNode, id)
	}
	return id, nil
}

func (e *executor) bind(provisional, real string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolved[provisional] = real
}

func (e *executor) failedDependency(op Operation) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dep := range op.Dependencies {
		if e.failed[dep] {
			return dep
		}
	}
	return ""
}

func (e *executor) recordSuccess(op Operation, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result.ExecutedOperations++
	e.done++
	e.naive += elapsed
	e.logger.Debug("Operation applied",
		zap.String("operation", op.ID),
		zap.String("description", op.Describe()),
		zap.Duration("elapsed", elapsed),
	)
}

func (e *executor) recordFailure(op Operation, err error, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed[op.ID] = true
	e.result.FailedOperations++
	e.result.Errors = append(e.result.Errors, OperationError{Operation: op, Error: err.Error(), Err: err})
	e.done++
	e.naive += elapsed
	e.logger.Warn("Operation failed",
		zap.String("operation", op.ID),
		zap.String("description", op.Describe()),
		zap.Error(err),
	)
}

func (e *executor) emitProgress(current string) {
	if e.progress == nil {
		return
	}
	e.mu.Lock()
	completed := e.done
	e.mu.Unlock()

	var eta time.Duration
	if completed > 0 {
		perOp := float64(time.Since(e.started)) / float64(completed)
		eta = time.Duration(perOp * float64(e.total-completed))
	}
	e.progress(ProgressEvent{
		Completed:              completed,
		Total:                  e.total,
		CurrentOperation:       current,
		EstimatedTimeRemaining: eta,
	})
}

func (e *executor) finish() *ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.result
	res.TotalTime = time.Since(e.started)
	res.Success = res.FailedOperations == 0 && e.done == e.total
	res.Performance.APICallsActual = e.mutator.calls.Load()
	if e.done > 0 {
		res.Performance.TimePerOperation = res.TotalTime / time.Duration(e.done)
	}
	if res.TotalTime > 0 {
		res.Performance.EffectiveSpeedup = float64(e.naive) / float64(res.TotalTime)
	}
	if len(e.resolved) > 0 {
		res.CreatedIDs = make(map[string]string, len(e.resolved))
		for k, v := range e.resolved {
			res.CreatedIDs[k] = v
		}
	}
	return &res
}

// orderByDependencies returns ops ordered so that every operation follows its
// dependencies. Operations without a dependency relation keep their order.
func orderByDependencies(ops []Operation) []Operation {
	index := make(map[string]int, len(ops))
	for i, op := range ops {
		index[op.ID] = i
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(ops))
	ordered := make([]Operation, 0, len(ops))

	var visit func(i int)
	visit = func(i int) {
		if state[i] != unvisited {
			return
		}
		state[i] = visiting
		for _, dep := range ops[i].Dependencies {
			if j, ok := index[dep]; ok {
				visit(j)
			}
		}
		state[i] = visited
		ordered = append(ordered, ops[i])
	}
	for i := range ops {
		visit(i)
	}
	return ordered
}

// buildChunks groups consecutive operations sharing type and priority into
// chunks of at most size operations. A chunk is closed early when an operation
// depends on a member of the current chunk.
func buildChunks(ops []Operation, size int) [][]Operation {
	var chunks [][]Operation
	var current []Operation
	members := make(map[string]bool)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, current)
		current = nil
		members = make(map[string]bool)
	}

	for _, op := range ops {
		if len(current) > 0 {
			head := current[0]
			if head.Type != op.Type || head.Priority != op.Priority || len(current) >= size || dependsOnAny(op, members) {
				flush()
			}
		}
		current = append(current, op)
		members[op.ID] = true
	}
	flush()
	return chunks
}

func dependsOnAny(op Operation, ids map[string]bool) bool {
	for _, dep := range op.Dependencies {
		if ids[dep] {
			return true
		}
	}
	return false
}
