package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_CapsConcurrency(t *testing.T) {
	l := NewLimiter(2)

	var current, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			defer l.Release()

			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestLimiter_ServesWaitersInArrivalOrder(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	const waiters = 5
	order := make(chan int, waiters)
	started := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if id == 0 {
				close(started)
			} else {
				<-started
				// Establish arrival order deterministically
				time.Sleep(time.Duration(id) * 20 * time.Millisecond)
			}
			require.NoError(t, l.Acquire(context.Background()))
			order <- id
			l.Release()
		}(i)
	}

	// Give all waiters time to enqueue before releasing the held slot
	time.Sleep(waiters * 25 * time.Millisecond)
	l.Release()
	wg.Wait()
	close(order)

	var got []int
	for id := range order {
		got = append(got, id)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLimiter_ReserveGrantsInCallOrder(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	// Queue positions are fixed at Reserve time, before any goroutine
	// starts waiting
	const waiters = 6
	tickets := make([]<-chan struct{}, waiters)
	for i := range tickets {
		tickets[i] = l.Reserve()
	}

	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := waiters - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background(), tickets[i]))
			order <- i
			l.Release()
		}(i)
	}

	l.Release()
	wg.Wait()
	close(order)

	var got []int
	for id := range order {
		got = append(got, id)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestLimiter_AbandonedReservationIsDequeued(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	abandoned := l.Reserve()
	surviving := l.Reserve()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, abandoned))

	// The released slot skips the abandoned position
	l.Release()
	select {
	case <-surviving:
	case <-time.After(time.Second):
		t.Fatal("slot not granted to the surviving reservation")
	}
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The held slot must still be releasable and reusable
	l.Release()
	require.NoError(t, l.Acquire(context.Background()))
}

func TestLimiter_CancelledWaiterDoesNotLeakSlot(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.Error(t, <-done)

	l.Release()

	// Slot must be available for a fresh acquirer
	acquired := make(chan struct{})
	go func() {
		if err := l.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("slot leaked after waiter cancellation")
	}
}
