package reconcile

import (
	"context"
	"sync/atomic"
	"time"
)

// UpdateFields lists the fields to change. Nil fields are left untouched.
type UpdateFields struct {
	Title *string
	URL   *string
}

// Destination describes where a node is moved. An empty ParentID keeps the
// current parent; a nil Index appends.
type Destination struct {
	ParentID string
	Index    *int
}

// Mutator is the tree mutation capability the executor applies plans against.
// Implementations must be safe for concurrent use when batch execution is used.
type Mutator interface {
	// Create creates a node under parentID at index and returns it with its new id.
	// An empty url creates a folder.
	Create(ctx context.Context, parentID, title, url string, index int) (Node, error)

	// Remove removes a leaf or an empty folder.
	Remove(ctx context.Context, id string) error

	// RemoveSubtree removes a folder and all of its descendants.
	RemoveSubtree(ctx context.Context, id string) error

	// Update changes the title and/or url of a node.
	Update(ctx context.Context, id string, changes UpdateFields) error

	// Move moves a node to a destination.
	Move(ctx context.Context, id string, dest Destination) error

	// Get returns a node; used to tell leaves from folders before deletion.
	Get(ctx context.Context, id string) (Node, error)
}

// Recorder observes plans and operation outcomes, e.g. for metrics.
type Recorder interface {
	RecordPlan(strategy StrategyType, complexity Complexity, operations int)
	RecordOperation(opType OperationType, err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordPlan(StrategyType, Complexity, int) {}

func (nopRecorder) RecordOperation(OperationType, error, time.Duration) {}

// countingMutator counts every call made against the wrapped mutator.
type countingMutator struct {
	next  Mutator
	calls atomic.Int64
}

func (c *countingMutator) Create(ctx context.Context, parentID, title, url string, index int) (Node, error) {
	c.calls.Add(1)
	return c.next.Create(ctx, parentID, title, url, index)
}

func (c *countingMutator) Remove(ctx context.Context, id string) error {
	c.calls.Add(1)
	return c.next.Remove(ctx, id)
}

func (c *countingMutator) RemoveSubtree(ctx context.Context, id string) error {
	c.calls.Add(1)
	return c.next.RemoveSubtree(ctx, id)
}

func (c *countingMutator) Update(ctx context.Context, id string, changes UpdateFields) error {
	c.calls.Add(1)
	return c.next.Update(ctx, id, changes)
}

func (c *countingMutator) Move(ctx context.Context, id string, dest Destination) error {
	c.calls.Add(1)
	return c.next.Move(ctx, id, dest)
}

func (c *countingMutator) Get(ctx context.Context, id string) (Node, error) {
	c.calls.Add(1)
	return c.next.Get(ctx, id)
}
