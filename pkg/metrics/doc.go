// Package metrics defines the Prometheus metrics exposed by the
// scheduler process and the HTTP handler that serves them.
package metrics
