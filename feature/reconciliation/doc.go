// Package reconciliation exposes the reconcile engine over the stored bookmark tree.
//
// Service loads the current tree from a TreeStore, plans against a target tree
// and applies the plan. Before a real apply the current tree is backed up
// through Snapshots and afterwards a report is uploaded. Once a pass has run,
// the tree is loaded again and diffed against the target; remaining differences
// are executed in follow-up passes up to Config.MaxPasses.
//
// # HTTP API
//
//	GET  /tree                 stored tree
//	POST /reconcile/diff       {"target": [...], "original": [...]} -> plan
//	POST /reconcile/apply      {"target": [...], "dry_run": false}  -> apply result
//	GET  /reconcile/snapshots  ?kind=trees|reports
package reconciliation
