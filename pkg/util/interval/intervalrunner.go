package interval

import (
	"time"

	"github.com/detsql/detsql/pkg/errors"
	"github.com/detsql/detsql/pkg/util/atomic"
)

// IntervalRunner executes an action on a fixed interval until stopped.
type IntervalRunner struct {
	runState atomic.AtomicRunState
	action   func()
	interval time.Duration
	onStop   func()
}

// NewIntervalRunner creates a new interval runner that executes action every interval once
// started.
func NewIntervalRunner(action func(), interval time.Duration) *IntervalRunner {
	return &IntervalRunner{
		action:   action,
		interval: interval,
	}
}

// WithFinalRun makes the runner execute the action one more time when it is stopped, before the
// run state is reset.
func (ir *IntervalRunner) WithFinalRun() *IntervalRunner {
	ir.onStop = ir.action
	return ir
}

// Start begins the interval execution. It returns false if the runner is already running.
func (ir *IntervalRunner) Start() bool {
	// a previous Stop() must finish resetting before we can start again
	ir.runState.WaitForReset()

	if !ir.runState.Start() {
		return false
	}

	go func() {
		defer ir.runState.Reset()

		ticker := time.NewTicker(ir.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ir.runState.OnStop():
				if ir.onStop != nil {
					ir.run(ir.onStop)
				}
				return

			case <-ticker.C:
			}

			ir.run(ir.action)
		}
	}()

	return true
}

// Stop signals the runner to stop. An action that is already executing completes first.
func (ir *IntervalRunner) Stop() bool {
	return ir.runState.Stop()
}

// StopAndWait stops the runner and blocks until the run loop has exited, including the final
// run if one is configured.
func (ir *IntervalRunner) StopAndWait() bool {
	if !ir.runState.Stop() {
		return false
	}
	ir.runState.WaitForReset()
	return true
}

// IsRunning returns true if the runner is started or stopping.
func (ir *IntervalRunner) IsRunning() bool {
	return ir.runState.IsRunning()
}

// run executes f. A panic recovered by the registered panic handler ends only this execution,
// not the run loop.
func (ir *IntervalRunner) run(f func()) {
	defer errors.HandleWorkerPanic()

	f()
}
