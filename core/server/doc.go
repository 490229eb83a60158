// Package server holds the HTTP server configuration.
//
// While the start command handles the server startup, this package defines the
// listen port, the API key guarding the reconciliation endpoints, the request
// body limit and whether the metrics endpoint is exposed.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server settings
// and by cmd/start to configure Fiber.
package server
