package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrDependencyFailed marks an operation skipped because a dependency failed.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrUnresolvedNode indicates a reference to a node that was never created.
	ErrUnresolvedNode = errors.New("node not yet created")

	// ErrNoMutator is returned when a plan is executed by an engine without a mutator.
	ErrNoMutator = errors.New("engine has no mutator")
)

// MutationError reports a failed call against the tree mutation backend.
type MutationError struct {
	Operation Operation
	Call      string
	Err       error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Call, e.Operation.Describe(), e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// UnsupportedStrategyError is returned when a plan requires a strategy the
// executor does not implement.
type UnsupportedStrategyError struct {
	Strategy StrategyType
	Reason   string
}

func (e *UnsupportedStrategyError) Error() string {
	return fmt.Sprintf("strategy %q is not supported: %s; apply the change manually or split it into smaller changes", e.Strategy, e.Reason)
}

// ValidationError reports a malformed input tree.
type ValidationError struct {
	Tree   string
	NodeID string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("invalid %s tree: node %s at %q: %s", e.Tree, e.NodeID, e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid %s tree at %q: %s", e.Tree, e.Path, e.Reason)
}
