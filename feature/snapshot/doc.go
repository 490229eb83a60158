// Package snapshot keeps bookmark tree backups and apply reports in object storage.
//
// Objects are JSON documents stored as <prefix>/trees/<timestamp>-<label>.json and
// <prefix>/reports/<timestamp>-<label>.json. The timestamp sorts lexically, so
// List returns the newest objects first and Prune can drop the tail.
package snapshot
