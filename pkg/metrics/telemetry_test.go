package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kubecost/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetry(t *testing.T) {
	registry := prometheus.NewRegistry()
	InitTelemetry(&MetricsConfig{}, registry)

	events.GlobalDispatcherFor[AllocationEvent]().Dispatch(AllocationEvent{Key: "h0", ID: 1, Created: true, Wait: time.Millisecond})
	events.GlobalDispatcherFor[AllocationEvent]().Dispatch(AllocationEvent{Key: "h0", ID: 2, Wait: time.Millisecond})
	events.GlobalDispatcherFor[AllocationCancelledEvent]().Dispatch(AllocationCancelledEvent{Key: "h1", Reason: "deadline"})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(allocations) == 2 &&
			testutil.ToFloat64(entriesCreated) == 1 &&
			testutil.ToFloat64(cancellations.WithLabelValues("deadline")) == 1
	}, 5*time.Second, 10*time.Millisecond)

	handler := ResponseMetricMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short and stout"))
	}), func(*http.Request) string { return "/teapots/:name" })

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapots/brown", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(requestsCount.WithLabelValues("/teapots/:name", http.MethodGet, "418")) == 1
	}, 5*time.Second, 10*time.Millisecond)

	count, err := testutil.GatherAndCount(registry, AllocationsTotalMetric, EntriesCreatedTotalMetric)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestResponseWriterAdapterDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	adapter := &responseWriterAdapter{w: rec}

	n, err := adapter.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, http.StatusOK, adapter.StatusCode())
	assert.Equal(t, "200", adapter.Status())
	assert.Equal(t, uint64(3), adapter.TotalResponseSize())
}

func TestDisabledMetricsMap(t *testing.T) {
	mc := MetricsConfig{DisabledMetrics: []string{ResponseSizeMetric, ResponseTimeMetric}}

	disabled := mc.GetDisabledMetricsMap()
	assert.Len(t, disabled, 2)
	assert.Contains(t, disabled, ResponseSizeMetric)
	assert.NotContains(t, disabled, AllocationsTotalMetric)
}
