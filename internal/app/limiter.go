package app

import (
	"context"
	"sync"
)

// Limiter admits jobs up to a fixed number of concurrent executions.
// Waiters are served strictly in arrival order: a released slot always
// goes to the oldest waiter, so no job can starve while slots are free.
type Limiter struct {
	mu      sync.Mutex
	free    int
	waiters []chan struct{}
}

// NewLimiter creates a limiter with the given number of slots
func NewLimiter(size int) *Limiter {
	if size < 1 {
		size = 1
	}
	return &Limiter{free: size}
}

// Reserve takes a queue position without blocking. The returned ticket
// is closed once the slot is granted; pair it with Wait. Reservations
// are served strictly in Reserve call order, so reserving in the
// submitting goroutine pins the position to submission order.
func (l *Limiter) Reserve() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ready := make(chan struct{})
	if l.free > 0 {
		l.free--
		close(ready)
		return ready
	}
	l.waiters = append(l.waiters, ready)
	return ready
}

// Wait blocks until the reservation is granted or ctx is done. An
// abandoned reservation is dequeued; if the grant raced the
// cancellation, the slot is passed on so it is not lost.
func (l *Limiter) Wait(ctx context.Context, ticket <-chan struct{}) error {
	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, w := range l.waiters {
		if w == ticket {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.mu.Unlock()
			return ctx.Err()
		}
	}
	l.mu.Unlock()
	l.Release()
	return ctx.Err()
}

// Acquire blocks until a slot is available or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.Wait(ctx, l.Reserve())
}

// Release returns a slot, waking the oldest waiter if any
func (l *Limiter) Release() {
	l.mu.Lock()
	if len(l.waiters) > 0 {
		ready := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.mu.Unlock()
		close(ready)
		return
	}
	l.free++
	l.mu.Unlock()
}
