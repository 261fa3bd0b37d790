package metrics

import "time"

// HttpHandlerMetricEvent contains http handler response metrics.
type HttpHandlerMetricEvent struct {
	Handler      string
	Method       string
	Code         int
	ResponseTime time.Duration
	ResponseSize uint64
}

// AllocationEvent is dispatched for every successful identifier allocation.
type AllocationEvent struct {
	Key     string
	ID      int64
	Created bool
	Wait    time.Duration
}

// AllocationCancelledEvent is dispatched when a caller gave up waiting for the allocation guard.
type AllocationCancelledEvent struct {
	Key    string
	Reason string
	Wait   time.Duration
}
