package prometheus

import (
	"time"

	"github.com/fmitcpd/fmitcpd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// coordinatorMetrics is the Prometheus implementation of
// metrics.CoordinatorMetrics.
type coordinatorMetrics struct {
	steps         *prometheus.CounterVec
	stepDuration  prometheus.Histogram
	transfers     *prometheus.CounterVec
}

// NewCoordinatorMetrics creates a Prometheus-backed
// metrics.CoordinatorMetrics. Returns nil if metrics are not enabled.
func NewCoordinatorMetrics() metrics.CoordinatorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &coordinatorMetrics{
		steps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmicoord_steps_total",
				Help: "Total number of Jacobi steps by outcome",
			},
			[]string{"status"}, // "ok", "halted"
		),
		stepDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fmicoord_step_duration_milliseconds",
				Help:    "Wall-clock duration of one Jacobi step across all components",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		transfers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmicoord_transfers_total",
				Help: "Total number of inter-component value transfers",
			},
			[]string{"src_fmu", "dst_fmu"},
		),
	}
}

func (m *coordinatorMetrics) RecordStep(duration time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "halted"
	}
	m.steps.WithLabelValues(status).Inc()
	m.stepDuration.Observe(float64(duration.Microseconds()) / 1000)
}

func (m *coordinatorMetrics) RecordTransfer(srcFmu, dstFmu string) {
	m.transfers.WithLabelValues(srcFmu, dstFmu).Inc()
}
