package prometheus

import (
	"time"

	"github.com/fmitcpd/fmitcpd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	connectedClients  prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
}

// NewServerMetrics creates a Prometheus-backed metrics.ServerMetrics.
// Returns nil if metrics are not enabled (metrics.InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &serverMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmitcpd_requests_total",
				Help: "Total number of dispatched requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fmitcpd_request_duration_milliseconds",
				Help:    "Duration of dispatched requests in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
		connectedClients: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fmitcpd_connected_clients",
				Help: "Current number of connected clients",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fmitcpd_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fmitcpd_connections_closed_total",
				Help: "Total number of closed client connections",
			},
		),
	}
}

func (m *serverMetrics) RecordRequest(op string, status string, duration time.Duration) {
	m.requests.WithLabelValues(op, status).Inc()
	m.requestDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *serverMetrics) SetConnectedClients(count int) { m.connectedClients.Set(float64(count)) }
func (m *serverMetrics) RecordConnectionAccepted()      { m.connectionsAccepted.Inc() }
func (m *serverMetrics) RecordConnectionClosed()        { m.connectionsClosed.Inc() }
