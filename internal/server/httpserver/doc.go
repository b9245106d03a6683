// Package httpserver provides the HTTP plumbing shared by the metrics
// endpoint and the WebSocket listener.
//
// It uses net/http directly:
//
//   - server.go: listener lifecycle (Listen, Start, Shutdown)
//   - router.go: /metrics and /healthz
//   - middleware.go: request id, panic recovery, access logging
package httpserver
