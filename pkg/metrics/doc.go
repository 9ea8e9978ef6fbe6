// Package metrics defines the Prometheus instrumentation for the monitor.
package metrics
