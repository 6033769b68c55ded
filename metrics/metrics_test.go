package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCounters(t *testing.T) {
	m := New()

	m.JobSubmitted("article")
	m.JobSubmitted("article")
	m.JobStarted()
	m.ItemProcessed("article", true, time.Second)
	m.ItemProcessed("article", false, 2*time.Second)
	m.JobFinished("article", "completed")

	assert.InDelta(t, 2, testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("article")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QueueDepth), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.JobsInFlight), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("article", OutcomeFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsFinished.WithLabelValues("article", "completed")), 0)
}

func TestCompletionCalled(t *testing.T) {
	m := New()
	m.CompletionCalled("openai", nil)
	m.CompletionCalled("openai", errors.New("quota"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.Completions.WithLabelValues("openai", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Completions.WithLabelValues("openai", OutcomeFailed)), 0)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobSubmitted("product")
		m.JobRejected("product", "queue_full")
		m.JobStarted()
		m.ItemProcessed("product", true, time.Millisecond)
		m.JobFinished("product", "failed")
		m.CompletionCalled("anthropic", nil)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.JobSubmitted("product")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `content_queue_jobs_submitted_total{kind="product"} 1`)
}
