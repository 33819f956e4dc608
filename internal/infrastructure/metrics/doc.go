// Package metrics exposes Prometheus instrumentation for the service.
//
// All collectors live on a dedicated registry owned by a Metrics value, so
// tests can create as many independent instances as they like. The registry
// also carries the Go runtime and process collectors.
package metrics
