package ratelimit

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// Gate bounds concurrent access to a shared resource. Waiters are served in
// FIFO order so a burst of callers cannot starve earlier ones.
type Gate struct {
	mu      sync.Mutex
	max     int
	active  int
	waiters *list.List
}

// NewGate creates a gate admitting at most max concurrent holders.
func NewGate(max int) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{max: max, waiters: list.New()}
}

// Acquire blocks until a slot is free or the context is done.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.active < g.max && g.waiters.Len() == 0 {
		g.active++
		g.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := g.waiters.PushBack(ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-ready:
			// Woken concurrently with cancellation; hand the slot on.
			g.mu.Unlock()
			g.Release()
			return ctx.Err()
		default:
		}
		g.waiters.Remove(elem)
		g.mu.Unlock()
		return ctx.Err()
	}
}

// Release frees a slot, waking the oldest waiter if any.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if front := g.waiters.Front(); front != nil {
		g.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	if g.active > 0 {
		g.active--
	}
}

// Active returns the number of currently held slots (for diagnostics).
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Waiting returns the number of queued waiters (for diagnostics).
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters.Len()
}

// ErrNonRetryable can wrap an error inside an op to stop the retry loop early.
var ErrNonRetryable = errors.New("non-retryable")
