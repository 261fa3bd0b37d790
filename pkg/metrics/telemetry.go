package metrics

import (
	"fmt"
	"sync"

	"github.com/kubecost/events"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RequestsTotalMetric         = "detsql_http_requests_total"
	ResponseTimeMetric          = "detsql_http_response_time_seconds"
	ResponseSizeMetric          = "detsql_http_response_size_bytes"
	AllocationsTotalMetric      = "detsql_allocations_total"
	CancellationsTotalMetric    = "detsql_allocation_cancellations_total"
	EntriesCreatedTotalMetric   = "detsql_entries_created_total"
	AllocationWaitSecondsMetric = "detsql_allocation_wait_seconds"
)

var (
	once                sync.Once
	dispatcher          events.Dispatcher[HttpHandlerMetricEvent]
	allocDispatcher     events.Dispatcher[AllocationEvent]
	cancelledDispatcher events.Dispatcher[AllocationCancelledEvent]
	// -- append new dispatchers here for new event types

	// prometheus metrics
	requestsCount  *prometheus.CounterVec
	responseTime   *prometheus.HistogramVec
	responseSize   *prometheus.SummaryVec
	allocations    prometheus.Counter
	cancellations  *prometheus.CounterVec
	entriesCreated prometheus.Counter
	allocationWait prometheus.Histogram
)

// InitTelemetry registers the detsql prometheus metrics with registerer and subscribes them to
// the global event dispatchers. Only the first call has any effect.
func InitTelemetry(config *MetricsConfig, registerer prometheus.Registerer) {
	once.Do(func() {
		disabled := map[string]struct{}{}
		if config != nil {
			disabled = config.GetDisabledMetricsMap()
		}

		var collectors []prometheus.Collector
		register := func(name string, c prometheus.Collector) {
			if _, ok := disabled[name]; ok {
				return
			}
			collectors = append(collectors, c)
		}

		requestsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RequestsTotalMetric,
			Help: "detsql_http_requests_total Total number of HTTP requests",
		}, []string{"handler", "method", "code"})
		register(RequestsTotalMetric, requestsCount)

		var buckets = []float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 3, 6, 9, 20, 30, 60}
		responseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    ResponseTimeMetric,
			Help:    "detsql_http_response_time_seconds Response time in seconds",
			Buckets: buckets,
		}, []string{"handler", "method", "code"})
		register(ResponseTimeMetric, responseTime)

		responseSize = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: ResponseSizeMetric,
			Help: "detsql_http_response_size_bytes Response size in bytes",
		}, []string{"handler", "method", "code"})
		register(ResponseSizeMetric, responseSize)

		allocations = prometheus.NewCounter(prometheus.CounterOpts{
			Name: AllocationsTotalMetric,
			Help: "detsql_allocations_total Total number of identifiers allocated",
		})
		register(AllocationsTotalMetric, allocations)

		cancellations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: CancellationsTotalMetric,
			Help: "detsql_allocation_cancellations_total Allocations abandoned while waiting for the guard",
		}, []string{"reason"})
		register(CancellationsTotalMetric, cancellations)

		entriesCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: EntriesCreatedTotalMetric,
			Help: "detsql_entries_created_total Total number of per-key entries created",
		})
		register(EntriesCreatedTotalMetric, entriesCreated)

		allocationWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    AllocationWaitSecondsMetric,
			Help:    "detsql_allocation_wait_seconds Time spent acquiring the guard and allocating",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
		})
		register(AllocationWaitSecondsMetric, allocationWait)

		registerer.MustRegister(collectors...)

		// register event listeners
		dispatcher = events.GlobalDispatcherFor[HttpHandlerMetricEvent]()
		dispatcher.AddEventHandler(onHttpHandlerMetricEvent)

		allocDispatcher = events.GlobalDispatcherFor[AllocationEvent]()
		allocDispatcher.AddEventHandler(onAllocationEvent)

		cancelledDispatcher = events.GlobalDispatcherFor[AllocationCancelledEvent]()
		cancelledDispatcher.AddEventHandler(onAllocationCancelledEvent)
		// -- append new event handlers here
	})
}

// onHttpHandlerMetricEvent handles all incoming HttpHandlerMetricEvents
func onHttpHandlerMetricEvent(event HttpHandlerMetricEvent) {
	code := fmt.Sprintf("%d", event.Code)

	requestsCount.WithLabelValues(event.Handler, event.Method, code).Inc()
	responseSize.WithLabelValues(event.Handler, event.Method, code).Observe(float64(event.ResponseSize))
	responseTime.WithLabelValues(event.Handler, event.Method, code).Observe(event.ResponseTime.Seconds())
}

func onAllocationEvent(event AllocationEvent) {
	allocations.Inc()
	if event.Created {
		entriesCreated.Inc()
	}
	allocationWait.Observe(event.Wait.Seconds())
}

func onAllocationCancelledEvent(event AllocationCancelledEvent) {
	cancellations.WithLabelValues(event.Reason).Inc()
}
