package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kubecost/events"
)

// HandlerLabeler maps a request to the handler label recorded for it. Routes with path
// parameters should map to their pattern to keep label cardinality bounded.
type HandlerLabeler func(r *http.Request) string

// PathLabeler labels requests by their raw URL path.
func PathLabeler(r *http.Request) string {
	return r.URL.Path
}

// ResponseMetricMiddleware dispatches an HttpHandlerMetricEvent for every request handled by
// handler. A nil labeler falls back to PathLabeler.
func ResponseMetricMiddleware(handler http.Handler, labeler HandlerLabeler) http.Handler {
	dispatcher := events.GlobalDispatcherFor[HttpHandlerMetricEvent]()
	if labeler == nil {
		labeler = PathLabeler
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		respWriter := &responseWriterAdapter{w: rw}

		method := r.Method
		label := labeler(r)

		start := time.Now()
		handler.ServeHTTP(respWriter, r)
		duration := time.Since(start)

		dispatcher.Dispatch(HttpHandlerMetricEvent{
			Handler:      label,
			Method:       method,
			Code:         respWriter.StatusCode(),
			ResponseTime: duration,
			ResponseSize: respWriter.TotalResponseSize(),
		})
	})
}

// responseWriterAdapter records the status code and body size written through it.
type responseWriterAdapter struct {
	w          http.ResponseWriter
	written    bool
	statusCode int
	size       uint64
}

func (wd *responseWriterAdapter) Header() http.Header {
	return wd.w.Header()
}

func (wd *responseWriterAdapter) Write(bytes []byte) (int, error) {
	if !wd.written {
		wd.WriteHeader(http.StatusOK)
	}

	numBytes, err := wd.w.Write(bytes)
	wd.size += uint64(numBytes)
	return numBytes, err
}

// WriteHeader only forwards the first status code, matching net/http semantics.
func (wd *responseWriterAdapter) WriteHeader(statusCode int) {
	if wd.written {
		return
	}

	wd.written = true
	wd.statusCode = statusCode
	wd.w.WriteHeader(statusCode)
}

func (wd *responseWriterAdapter) StatusCode() int {
	if !wd.written {
		return http.StatusOK
	}
	return wd.statusCode
}

func (wd *responseWriterAdapter) Status() string {
	return fmt.Sprintf("%d", wd.StatusCode())
}

func (wd *responseWriterAdapter) TotalResponseSize() uint64 {
	return wd.size
}

// Flush lets streaming handlers such as promhttp flush through the adapter.
func (wd *responseWriterAdapter) Flush() {
	if f, ok := wd.w.(http.Flusher); ok {
		f.Flush()
	}
}
