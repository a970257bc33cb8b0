// Package metrics exposes Prometheus collectors for the cache, the event bus
// and the HTTP API.
package metrics
