// Package api serves a host application's automation surface over HTTP.
//
// This package provides:
//   - GET endpoints for cameras, renderers, extensions, color spaces,
//     sequences and screenshot/animation captures
//   - Capture history, health and metrics endpoints under /api/v1
//   - A WebSocket hub broadcasting server events
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// Requests arrive on many goroutines, but the automation context may only
// be touched from the host's main loop. Every handler therefore calls the
// context through the bridge facade, which either runs the call in place
// or relays it to the main loop and blocks until it resolves. Captures are
// bracketed by PushState/PopState calls made through the same facade.
//
// # Errors
//
// Missing or malformed parameters produce 422 validation_error responses.
// Every other failure produces a 500 whose {"detail": ...} body carries
// the error chain, plus the goroutine stack when the host call panicked.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
