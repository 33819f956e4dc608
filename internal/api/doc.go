// Package api implements the HTTP REST API and WebSocket server for Sentinel.
//
// This package provides:
//   - Login, current-principal and WebSocket ticket endpoints
//   - User, resource and access-log CRUD, each gated by the access guard
//   - A WebSocket hub broadcasting access events and resource changes
//   - Middleware stack (request ID, logging, recovery, CORS, metrics)
//
// # Security
//
// Every protected route declares the set of roles it admits; the set is
// derived from the permission map in package auth. One guard middleware
// verifies the bearer token, checks the role and attaches the principal to
// the request context. Denials are recorded in the access log.
//
// Login is rate limited per client IP. Unknown usernames and wrong
// passwords produce identical responses.
//
// WebSocket connections authenticate with single-use tickets so bearer
// tokens never appear in URLs.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. Without them the REST API and the
// WebSocket feed work unchanged; events are simply not forwarded.
package api
