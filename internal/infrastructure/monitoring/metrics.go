package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	registry *prometheus.Registry

	// IPC metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	DroppedFrames   prometheus.Counter

	// Gatekeeper metrics
	GatekeeperDecisions *prometheus.CounterVec
	CSPStripped         prometheus.Counter

	// Browser metrics
	ScriptLoads prometheus.Counter
	Uptime      prometheus.GaugeFunc

	startTime time.Time
}

// NewMetrics creates a metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_requests_total",
				Help: "Total number of IPC requests handled",
			},
			[]string{"kind", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_request_duration_seconds",
				Help:    "IPC request handling duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbridge_requests_in_flight",
				Help: "Number of IPC requests currently being handled",
			},
		),
		DroppedFrames: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbridge_dropped_frames_total",
				Help: "Total number of input lines dropped because they were not valid JSON objects",
			},
		),
		GatekeeperDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_gatekeeper_decisions_total",
				Help: "Total number of browser requests seen by the gatekeeper",
			},
			[]string{"verdict"},
		),
		CSPStripped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbridge_csp_headers_stripped_total",
				Help: "Total number of responses whose content-security-policy header was blanked",
			},
		),
		ScriptLoads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbridge_script_loads_total",
				Help: "Total number of trusted script loads requested",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scriptbridge_uptime_seconds",
			Help: "Sidecar uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest records a handled IPC request
func (m *Metrics) RecordRequest(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind, status).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncInFlight marks a request as started
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// DecInFlight marks a request as finished
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// IncDroppedFrames counts an unparsable input line
func (m *Metrics) IncDroppedFrames() {
	if m == nil {
		return
	}
	m.DroppedFrames.Inc()
}

// RecordGatekeeperDecision counts an allow or block verdict
func (m *Metrics) RecordGatekeeperDecision(allowed bool) {
	if m == nil {
		return
	}
	verdict := "blocked"
	if allowed {
		verdict = "allowed"
	}
	m.GatekeeperDecisions.WithLabelValues(verdict).Inc()
}

// IncCSPStripped counts a blanked content-security-policy header
func (m *Metrics) IncCSPStripped() {
	if m == nil {
		return
	}
	m.CSPStripped.Inc()
}

// IncScriptLoads counts an init transition
func (m *Metrics) IncScriptLoads() {
	if m == nil {
		return
	}
	m.ScriptLoads.Inc()
}
