package monitoring

import (
	"time"
)

// Timer measures request duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	kind    string
}

// NewTimer creates a new timer and marks a request in flight
func NewTimer(metrics *Metrics, kind string) *Timer {
	metrics.IncInFlight()
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		kind:    kind,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.DecInFlight()
	t.metrics.RecordRequest(t.kind, status, duration)
	return duration
}
