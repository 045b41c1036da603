// Package server exposes a single fetchstore store over HTTP.
//
// This package is internal to fetchstore and handles all HTTP concerns:
//
//   - REST API: JSON snapshot at "/api/state"
//   - Server-Sent Events: every notification at "/api/sse"
//   - Actions: "/api/refetch" and "/api/abort" (POST)
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests. It is used by the `serve` command
// of cmd/fetchstore.
package server
