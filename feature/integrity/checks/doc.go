// Package checks implements the individual integrity checks.
//
//   - Tree: orphaned rows, rows unreachable from the root, bookmarks with
//     children and non-dense sibling positions in the bookmark table.
//   - Storage: existence of the snapshot bucket and object counts.
//
// Each check has a Fix counterpart where a safe repair exists.
package checks
