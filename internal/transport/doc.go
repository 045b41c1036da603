// Package transport provides the HTTP capability used by fetchstore.
//
// This package is internal to fetchstore and handles one request/response
// cycle per call: it builds the request, stamps an X-Request-ID, applies the
// per-attempt timeout and reads a size-limited body.
//
// The main components are:
//
//   - [Client]: request builder and executor wrapping a [Doer]
//   - [Doer]: the minimal HTTP capability (satisfied by *http.Client)
//   - [Request] and [Response]: the values exchanged with the store
//
// Status codes are reported, not judged; deciding that a non-2xx response is
// a failure is the store's job.
package transport
