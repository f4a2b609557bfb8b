package metrics

import "time"

// ServerMetrics observes the connection server and dispatcher (spec.md
// §4.E/§4.F). Pass nil to disable metrics collection with zero overhead,
// exactly like the teacher's NFSMetrics contract.
type ServerMetrics interface {
	// RecordRequest records one completed dispatch with its operation
	// name, resulting status, and processing duration.
	RecordRequest(op string, status string, duration time.Duration)

	// SetConnectedClients updates the current connected-client gauge.
	SetConnectedClients(count int)

	RecordConnectionAccepted()
	RecordConnectionClosed()
}
