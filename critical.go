package esync

import (
	"sync"
	"sync/atomic"
)

// Critical is a mutual-exclusion region shared by a team: at most one
// goroutine executes inside it at any time. Every Enter (or successful
// TryEnter) must be paired with a Leave on the same goroutine; prefer
// [Critical.Do], which pairs them for you. The zero value is ready to use.
// A Critical must not be copied after first use.
type Critical struct {
	once      sync.Once
	ch        chan struct{}
	contended atomic.Int64
}

func (c *Critical) slot() chan struct{} {
	c.once.Do(func() {
		c.ch = make(chan struct{}, 1)
	})
	return c.ch
}

// Enter blocks until the region is free and takes ownership of it.
func (c *Critical) Enter() {
	ch := c.slot()
	select {
	case ch <- struct{}{}:
		return
	default:
	}
	c.contended.Add(1)
	ch <- struct{}{}
}

// TryEnter takes ownership of the region if it is free.
// Returns true on success.
func (c *Critical) TryEnter() bool {
	select {
	case c.slot() <- struct{}{}:
		return true
	default:
		return false
	}
}

// Leave releases the region. It must be called by the goroutine that
// entered; the region has no owner record, so a Leave from any other
// goroutine would release someone else's hold. Panics if the region is
// not held at all.
func (c *Critical) Leave() {
	select {
	case <-c.slot():
	default:
		panic("esync: Critical.Leave called without matching Enter")
	}
}

// Do runs fn inside the region. The region is released on every exit path,
// including a panic in fn.
func (c *Critical) Do(fn func()) {
	c.Enter()
	defer c.Leave()
	fn()
}

// Contended returns how many Enter calls had to wait for another owner.
func (c *Critical) Contended() int64 {
	return c.contended.Load()
}
