package metrics

import "time"

// CoordinatorMetrics observes the Jacobi stepper (spec.md §4.H). Pass nil
// to disable metrics collection with zero overhead.
type CoordinatorMetrics interface {
	// RecordStep records one completed step across all components: its
	// wall-clock duration and whether every component returned ok.
	RecordStep(duration time.Duration, ok bool)

	// RecordTransfer records one value transfer between two components.
	RecordTransfer(srcFmu, dstFmu string)
}
