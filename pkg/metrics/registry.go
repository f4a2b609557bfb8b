// Package metrics ports the teacher's nil-safe Prometheus metrics idiom
// (pkg/metrics/prometheus/*.go: a package-level registry gated by
// InitRegistry, promauto-registered instruments, NewXMetrics returning nil
// when disabled) to FMI-shaped instruments: request counters by operation
// and status, a connected-clients gauge, and step duration histograms.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var registry *prometheus.Registry

// InitRegistry enables metrics collection, backing every NewXMetrics
// constructor with a fresh registry. Call once at startup; a nil/unset
// registry makes every constructor below return nil, giving metrics zero
// overhead when disabled.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return registry != nil }

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry { return registry }
