package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, vec.WithLabelValues(labels...).Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsRegistered(t *testing.T) {
	PublishedTotal.WithLabelValues("test").Inc()
	DeliveredTotal.WithLabelValues("test").Inc()
	RejectedTotal.WithLabelValues("test", "gate").Inc()
	FiringsTotal.WithLabelValues("test", "ok").Inc()
	FiringDuration.WithLabelValues("test").Observe(0.01)
	EvictedTotal.WithLabelValues("test", "overflow").Inc()
	MailboxDepth.WithLabelValues("test").Set(0)
	GenerationAttemptsTotal.WithLabelValues("accepted").Inc()
	GenerationLatency.WithLabelValues("accepted").Observe(0.2)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"agentswarm_published_total":            false,
		"agentswarm_delivered_total":            false,
		"agentswarm_rejected_total":             false,
		"agentswarm_firings_total":              false,
		"agentswarm_firing_duration_seconds":    false,
		"agentswarm_join_evicted_total":         false,
		"agentswarm_mailbox_depth":              false,
		"agentswarm_inflight_firings":           false,
		"agentswarm_generation_attempts_total":  false,
		"agentswarm_generation_latency_seconds": false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %q not registered", name)
	}
}

func TestCounterIncrements(t *testing.T) {
	before := counterValue(t, FiringsTotal, "counter-test", "error")
	FiringsTotal.WithLabelValues("counter-test", "error").Inc()
	assert.Equal(t, before+1, counterValue(t, FiringsTotal, "counter-test", "error"))
}

func TestHandlerServesMetrics(t *testing.T) {
	PublishedTotal.WithLabelValues("http-test").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "agentswarm_published_total"))
}
