package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer measures a duration and records it into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into the given histogram and
// returns the duration.
func (t *Timer) ObserveDuration(h prometheus.Histogram) time.Duration {
	d := time.Since(t.start)
	h.Observe(d.Seconds())
	return d
}
