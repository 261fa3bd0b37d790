package log

import "sync"

// counter remembers how often each Deduped* format has been logged, so a warning that repeats
// for every abandoned allocation stops after its limit instead of flooding the log under load.
// Counts are kept per format string, not per formatted message, so every entry key shares one count.
type counter struct {
	mu   sync.Mutex
	seen map[string]int
}

func newCounter() *counter {
	return &counter{seen: map[string]int{}}
}

func (ctr *counter) count(key string) int {
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	return ctr.seen[key]
}

func (ctr *counter) delete(key string) {
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	delete(ctr.seen, key)
}

// increment returns the count including this call.
func (ctr *counter) increment(key string) int {
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	ctr.seen[key]++
	return ctr.seen[key]
}
