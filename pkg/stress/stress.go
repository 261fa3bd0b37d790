// Package stress drives a single Allocator from a fixed pool of workers and checks the
// allocation guarantees on the outcome: unique contiguous identifiers, exactly one entry per
// key and no lost records.
package stress

import (
	"context"
	"fmt"
	"time"

	"github.com/detsql/detsql/pkg/allocator"
	"github.com/detsql/detsql/pkg/errors"
	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/util/worker"
)

// Options configures a stress run. Zero sizes and timeouts are replaced by the defaults of the
// standard liveness scenario. InitialID is used as given, so zero starts the identifiers at 0.
type Options struct {
	Workers      int
	Calls        int
	InitialID    int64
	KeyPrefix    string
	DistinctKeys int
	Timeout      time.Duration
}

const (
	DefaultWorkers   = 64
	DefaultCalls     = 2000
	DefaultKeyPrefix = "h"
	DefaultTimeout   = 30 * time.Second
)

// DefaultOptions returns the standard liveness scenario: 64 workers, 2000 calls on the distinct
// keys h0..h1999 and identifiers starting at 1, bounded by 30 seconds.
func DefaultOptions() Options {
	return Options{
		Workers:      DefaultWorkers,
		Calls:        DefaultCalls,
		InitialID:    allocator.DefaultInitialID,
		KeyPrefix:    DefaultKeyPrefix,
		DistinctKeys: DefaultCalls,
		Timeout:      DefaultTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Calls <= 0 {
		o.Calls = d.Calls
	}
	if o.DistinctKeys <= 0 || o.DistinctKeys > o.Calls {
		o.DistinctKeys = o.Calls
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Key returns the key used by call i.
func (o Options) Key(i int) string {
	return fmt.Sprintf("%s%d", o.KeyPrefix, i%o.DistinctKeys)
}

type outcome struct {
	id  int64
	err error
}

// Run executes opts.Calls allocations on opts.Workers workers. The workers are released together
// once every call is queued. An error is returned only if the run could not be set up; failed
// properties are reported through Report.Violations.
func Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	alloc := allocator.New[int64](opts.InitialID)
	errs := new(errors.ErrorCollector)

	start := make(chan struct{})
	pool := worker.NewWorkerPool(opts.Workers, func(key string) outcome {
		defer errors.HandleWorkerPanic()

		<-start
		id, entry, err := alloc.AllocateEntry(ctx, key)
		if err != nil {
			errs.Report(err)
			return outcome{err: err}
		}

		entry.Append(id)
		return outcome{id: id}
	})
	defer pool.Shutdown()

	group := worker.NewOrderedGroup(pool, opts.Calls)
	for i := 0; i < opts.Calls; i++ {
		if err := group.Push(opts.Key(i)); err != nil {
			close(start)
			return nil, fmt.Errorf("queueing call %d: %w", i, err)
		}
	}

	began := time.Now()
	close(start)

	results, ok := worker.WaitWithTimeout(group, opts.Timeout)
	elapsed := time.Since(began)
	log.Debugf("Stress run of %d calls on %d workers finished in %s", opts.Calls, opts.Workers, elapsed)

	report := &Report{
		Options:  opts,
		Elapsed:  elapsed,
		TimedOut: !ok,
		Err:      errs.Err(),
	}
	if !ok {
		// abandon waiters still queued on the guard
		cancel()
		return report, nil
	}

	report.inspect(results, alloc.Store())
	return report, nil
}
