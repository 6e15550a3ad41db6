package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveHTTP("/api/sentiment", 200, 10*time.Millisecond)
	m.ObserveHTTP("/api/sentiment", 200, 20*time.Millisecond)
	m.ObserveRun("success", time.Second, time.Unix(1772456400, 0))
	m.PostsCollected.WithLabelValues("reddit", "fallback").Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/sentiment", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 1772456400.0, testutil.ToFloat64(m.LastRunTimestamp))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PostsCollected.WithLabelValues("reddit", "fallback")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("/", 200, time.Millisecond)
		m.ObserveRun("failed", time.Second, time.Now())
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RankedPosts.Set(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "aegis_pulse_ranker_ranked_posts 7")
	assert.Contains(t, string(body), "go_goroutines")
}
