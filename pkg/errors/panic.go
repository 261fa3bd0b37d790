package errors

import (
	"net/http"
	"runtime"
	"sync/atomic"
)

//--------------------------------------------------------------------------
//  PanicType
//--------------------------------------------------------------------------

// PanicType tells where a recovered panic came from: an HTTP handler, a background worker such
// as the archive flusher, or anywhere else.
type PanicType int

const (
	PanicTypeDefault PanicType = iota
	PanicTypeHTTP
	PanicTypeWorker
)

func (pt PanicType) String() string {
	return []string{"PanicTypeDefault", "PanicTypeHTTP", "PanicTypeWorker"}[pt]
}

//--------------------------------------------------------------------------
//  Panic
//--------------------------------------------------------------------------

// Panic is a recovered panic as passed to the PanicHandler.
type Panic struct {
	Error interface{}
	Stack string
	Type  PanicType
}

// PanicHandler reports a Panic and returns true to keep the process alive. Returning false
// re-panics on the dispatching goroutine, which takes the server down.
type PanicHandler = func(p Panic) bool

var (
	enabled    atomic.Bool
	dispatcher = make(chan Panic)
)

// SetPanicHandler installs handler for every panic recovered by HandlePanic, HandleHTTPPanic
// and HandleWorkerPanic. serve installs one that forwards to sentry. It may only be called
// once. Until it is called, panics are not recovered at all.
func SetPanicHandler(handler PanicHandler) error {
	if !enabled.CompareAndSwap(false, true) {
		return New("panic handler has already been set")
	}

	// handlers run one at a time, in the order panics were recovered
	go func() {
		for {
			p := <-dispatcher

			if !handler(p) {
				panic(p.Error)
			}
		}
	}()

	return nil
}

// PanicHandlerMiddleware is the outermost layer of the server's handler chain. A panicking
// route answers 500 and is reported as PanicTypeHTTP.
func PanicHandlerMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, rq *http.Request) {
		defer HandleHTTPPanic(rw, rq)

		handler.ServeHTTP(rw, rq)
	})
}

// HandlePanic must be deferred directly. It reports a panic of the calling goroutine as
// PanicTypeDefault.
func HandlePanic() {
	// recover only works in the deferred func itself, so each Handle*Panic repeats this body
	if !enabled.Load() {
		return
	}

	if err := recover(); err != nil {
		dispatch(err, PanicTypeDefault)
	}
}

// HandleHTTPPanic must be deferred directly by PanicHandlerMiddleware. It answers 500 and
// reports the panic as PanicTypeHTTP.
func HandleHTTPPanic(rw http.ResponseWriter, rq *http.Request) {
	if !enabled.Load() {
		return
	}

	if err := recover(); err != nil {
		rw.WriteHeader(http.StatusInternalServerError)

		dispatch(err, PanicTypeHTTP)
	}
}

// HandleWorkerPanic must be deferred directly around background work such as an archive flush
// or a stress worker. Captured panics have PanicTypeWorker.
func HandleWorkerPanic() {
	if !enabled.Load() {
		return
	}

	if err := recover(); err != nil {
		dispatch(err, PanicTypeWorker)
	}
}

// dispatch blocks until the handler goroutine takes the panic.
func dispatch(err interface{}, panicType PanicType) {
	stack := make([]byte, 1024*8)
	stack = stack[:runtime.Stack(stack, false)]

	dispatcher <- Panic{
		Error: err,
		Stack: string(stack),
		Type:  panicType,
	}
}
