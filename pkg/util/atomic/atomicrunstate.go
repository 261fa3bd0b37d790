package atomic

import (
	"sync"
)

// AtomicRunState provides goroutine-safe start/stop control for a run loop that lives in its
// own goroutine. The loop selects on OnStop() and calls Reset() once it has exited.
type AtomicRunState struct {
	lock     sync.Mutex
	stopping bool
	stop     chan struct{}
	reset    chan struct{}
}

// Start advances an idle run state to started and returns true. It returns false if the run
// state is already started.
func (ars *AtomicRunState) Start() bool {
	ars.lock.Lock()
	defer ars.lock.Unlock()

	if ars.stop != nil {
		return false
	}

	ars.stop = make(chan struct{})
	return true
}

// OnStop returns the channel that is closed when Stop() is called.
func (ars *AtomicRunState) OnStop() <-chan struct{} {
	ars.lock.Lock()
	defer ars.lock.Unlock()

	return ars.stop
}

// Stop closes the stop channel. It returns false if the run state was not running or is
// already stopping.
func (ars *AtomicRunState) Stop() bool {
	ars.lock.Lock()
	defer ars.lock.Unlock()

	if !ars.stopping && ars.stop != nil {
		ars.stopping = true
		ars.reset = make(chan struct{})
		close(ars.stop)
		return true
	}

	return false
}

// Reset returns the run state to idle. It must only be called by the run loop after it has
// received from OnStop().
func (ars *AtomicRunState) Reset() {
	ars.lock.Lock()
	defer ars.lock.Unlock()

	close(ars.reset)
	ars.stopping = false
	ars.stop = nil
}

// IsRunning returns true if the state is running or in the process of stopping.
func (ars *AtomicRunState) IsRunning() bool {
	ars.lock.Lock()
	defer ars.lock.Unlock()

	return ars.stop != nil
}

// WaitForReset blocks until Reset() is called, but only if the run state is stopping.
func (ars *AtomicRunState) WaitForReset() {
	ars.lock.Lock()
	if !(ars.stopping && ars.stop != nil) {
		ars.lock.Unlock()
		return
	}
	reset := ars.reset
	ars.lock.Unlock()

	<-reset
}
