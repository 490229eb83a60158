// Package integrity checks the health of the bookmark table and the snapshot bucket.
//
// # Endpoints
//
//	GET /integrity                 all checks, read only
//	GET /integrity/tree[?fix=true]    renumbers non-dense sibling positions
//	GET /integrity/storage[?fix=true] creates the snapshot bucket
//
// Orphans and parent cycles are only reported; they need a manual decision.
package integrity
