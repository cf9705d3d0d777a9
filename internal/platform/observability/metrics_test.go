package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enable(t *testing.T, cfg Config) {
	t.Helper()
	shutdown, err := Setup(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
}

func TestRecordOutcome(t *testing.T) {
	enable(t, Config{Enabled: true, Metrics: true})

	before := testutil.ToFloat64(DescribeTotal.WithLabelValues("ok"))
	RecordOutcome("ok")
	RecordOutcome("ok")
	assert.Equal(t, before+2, testutil.ToFloat64(DescribeTotal.WithLabelValues("ok")))
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	enable(t, Config{Enabled: true, Metrics: false})

	before := testutil.ToFloat64(DescribeTotal.WithLabelValues("noop"))
	RecordOutcome("noop")
	release := TrackInflight()
	release()
	assert.Equal(t, before, testutil.ToFloat64(DescribeTotal.WithLabelValues("noop")))
	assert.False(t, metricsEnabled())
}

func TestTrackInflight(t *testing.T) {
	enable(t, Config{Enabled: true, Metrics: true})

	base := testutil.ToFloat64(EngineInflight)
	release := TrackInflight()
	assert.Equal(t, base+1, testutil.ToFloat64(EngineInflight))
	release()
	assert.Equal(t, base, testutil.ToFloat64(EngineInflight))
}

func TestStartSpanObservesDuration(t *testing.T) {
	enable(t, Config{Enabled: true, Metrics: true})

	_, finish := StartSpan(context.Background(), "fetch", "span-test")
	finish(errors.New("boom"))

	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDuration, "caption_stage_duration_seconds"), 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	enable(t, Config{Enabled: true, Metrics: true})
	ObserveHTTP(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `caption_http_requests_total{method="GET",route="/health",status="200"}`))
}
