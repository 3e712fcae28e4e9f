package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.IncDroppedFrames()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.DroppedFrames))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.DroppedFrames))
}

func TestRecordRequest(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("init", "ready", 10*time.Millisecond)
	m.RecordRequest("execute", "result", 20*time.Millisecond)
	m.RecordRequest("execute", "error", 5*time.Millisecond)
	m.RecordRequest("execute", "result", 1*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("init", "ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("execute", "result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("execute", "error")))
}

func TestGatekeeperCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordGatekeeperDecision(true)
	m.RecordGatekeeperDecision(false)
	m.RecordGatekeeperDecision(false)
	m.IncCSPStripped()
	m.IncScriptLoads()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatekeeperDecisions.WithLabelValues("allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatekeeperDecisions.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CSPStripped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScriptLoads))
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	timer := NewTimer(m, "execute")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))

	d := timer.Stop("result")
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("execute", "result")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRequest("init", "ready", time.Millisecond)
		m.IncInFlight()
		m.DecInFlight()
		m.IncDroppedFrames()
		m.RecordGatekeeperDecision(true)
		m.IncCSPStripped()
		m.IncScriptLoads()
		NewTimer(m, "init").Stop("ready")
	})
	assert.Nil(t, m.Registry())
}

func TestServerEndpoints(t *testing.T) {
	m := NewMetrics()
	m.IncScriptLoads()

	srv := NewServer("127.0.0.1:0", m, func() any {
		return map[string]any{"initialized": true}
	}, zap.NewNop())

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "scriptbridge_script_loads_total 1"))
	})

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","state":{"initialized":true}}`, rec.Body.String())
	})
}
