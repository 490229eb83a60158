// Package middleware groups the Fiber middleware shared by every feature.
//
//   - rayid tags each request with an X-Ray-ID, reusing the caller's value when
//     present, so log lines of one reconciliation run can be correlated.
//   - auth rejects requests without the configured X-API-Key. An empty key
//     turns the check off for local use.
//
// Both are registered globally in the start command, rayid first.
package middleware
