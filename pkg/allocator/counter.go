package allocator

// DefaultInitialID is the first identifier handed out by a Counter created by New.
const DefaultInitialID int64 = 1

// Counter is the mutable identifier cell. It is not safe for concurrent use on its own: every
// call must be made while holding the Guard that protects it.
type Counter struct {
	next int64
}

// NewCounter creates a Counter whose first Next() call returns initial.
func NewCounter(initial int64) *Counter {
	return &Counter{
		next: initial,
	}
}

// Next returns the current value and advances the counter by one.
func (c *Counter) Next() int64 {
	id := c.next
	c.next++
	return id
}

// Peek returns the value the next call to Next will return.
func (c *Counter) Peek() int64 {
	return c.next
}
