package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLLM(t *testing.T) {
	m := New()
	m.ObserveLLM("detect", OutcomeOK, 1500*time.Millisecond)
	m.ObserveLLM("detect", OutcomeOK, 500*time.Millisecond)
	m.ObserveLLM("recommend", OutcomeInvalidJSON, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("detect", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("recommend", OutcomeInvalidJSON)))
}

func TestObserveFallback(t *testing.T) {
	m := New()
	m.ObserveFallback("no_features")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("no_features")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLLM("detect", OutcomeError, time.Second)
		m.ObserveCandidates(3)
		m.ObserveFallback("no_candidates")
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveCandidates(4)
	m.HTTPRequests.WithLabelValues("POST /analyze", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"faceanalyzer_rank_candidates_bucket",
		"faceanalyzer_http_requests_total",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
