// Package reconcile computes and applies the operations that transform an
// existing bookmark tree into a desired target tree.
//
// # Pipeline
//
// Data flows one way through the package:
//
//  1. Flattener: both trees are validated and flattened into an id map and a
//     parent to ordered-children map. Target nodes without an id receive a
//     provisional "pending:<n>" id.
//  2. Finder: delete, create, update and move/reorder passes emit candidate
//     operations. More than MoveCollapseThreshold positional moves within one
//     folder collapse into a single reorder.
//  3. Optimizer: operations are stable-sorted by priority and annotated with
//     dependencies (parent creation, sibling moves, subtree removal).
//  4. Strategy selector: the summed cost yields a complexity class, and the
//     operation count picks incremental, batch or rebuild execution.
//  5. Executor: operations run in dependency order against a Mutator, either
//     one at a time or in bounded concurrent chunks.
//
// # Failure isolation
//
// A failed operation is recorded in ExecutionResult.Errors and execution
// continues. Operations depending on a failed operation are not attempted and
// fail with ErrDependencyFailed. There is no rollback: a result with
// Success == false describes a partially applied plan, and callers re-read the
// tree and compute a fresh diff to continue.
//
// # Usage
//
//	engine := reconcile.NewEngine(store, cfg, reconcile.WithLogger(log))
//	diff, err := engine.ComputeDiff(current, target)
//	if err != nil {
//	    return err
//	}
//	result, err := engine.ExecuteDiff(ctx, diff, func(ev reconcile.ProgressEvent) {
//	    log.Info("progress", zap.Int("completed", ev.Completed), zap.Int("total", ev.Total))
//	})
//
// Rebuild plans are never executed; ExecuteDiff returns an
// *UnsupportedStrategyError for them.
package reconcile
