package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

func newTestScheduler(limits map[domain.ConcurrencyClass]int) *Scheduler {
	return NewScheduler(limits, zap.NewNop())
}

func TestScheduler_CeilingNeverExceeded(t *testing.T) {
	s := newTestScheduler(map[domain.ConcurrencyClass]int{domain.ClassDownload: 5})

	var live, peak, finished int64
	var wg sync.WaitGroup
	wg.Add(20)

	for i := 0; i < 20; i++ {
		s.Enqueue(domain.ClassDownload, func() {
			defer wg.Done()
			n := atomic.AddInt64(&live, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&live, -1)
			atomic.AddInt64(&finished, 1)
		})
	}

	wg.Wait()
	assert.Equal(t, int64(20), atomic.LoadInt64(&finished), "every queued run must eventually execute")
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(5), "live runs must never exceed the ceiling")
}

func TestScheduler_FIFOWithinClass(t *testing.T) {
	s := newTestScheduler(map[domain.ConcurrencyClass]int{domain.ClassDownload: 1})

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	gate := make(chan struct{})
	wg.Add(1)
	s.Enqueue(domain.ClassDownload, func() {
		defer wg.Done()
		<-gate
	})

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		s.Enqueue(domain.ClassDownload, func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	assert.Equal(t, 5, s.QueueLen(domain.ClassDownload))
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestScheduler_ClassesAreIndependent(t *testing.T) {
	s := newTestScheduler(map[domain.ConcurrencyClass]int{
		domain.ClassDownload: 1,
		domain.ClassInfo:     1,
	})

	gate := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	s.Enqueue(domain.ClassDownload, func() {
		defer wg.Done()
		<-gate
	})

	// A saturated download class must not block info admissions.
	done := make(chan struct{})
	s.Enqueue(domain.ClassInfo, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("info class blocked behind download class")
	}

	close(gate)
	wg.Wait()
}

func TestScheduler_AcquireBlocksUntilRelease(t *testing.T) {
	s := newTestScheduler(map[domain.ConcurrencyClass]int{domain.ClassInfo: 1})

	require.NoError(t, s.Acquire(context.Background(), domain.ClassInfo))

	acquired := make(chan struct{})
	go func() {
		if err := s.Acquire(context.Background(), domain.ClassInfo); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must block while the slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release(domain.ClassInfo)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("release did not wake the blocked acquirer")
	}
	s.Release(domain.ClassInfo)
}

func TestScheduler_AcquireHonorsContext(t *testing.T) {
	s := newTestScheduler(map[domain.ConcurrencyClass]int{domain.ClassInfo: 1})
	require.NoError(t, s.Acquire(context.Background(), domain.ClassInfo))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Acquire(ctx, domain.ClassInfo) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire did not return")
	}

	// The abandoned waiter must not consume the slot when it frees up.
	s.Release(domain.ClassInfo)
	assert.Equal(t, 0, s.Live(domain.ClassInfo))
	require.NoError(t, s.Acquire(context.Background(), domain.ClassInfo))
	s.Release(domain.ClassInfo)
}

func TestScheduler_UnknownClassSerialized(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Acquire(context.Background(), "mystery"))
	assert.Equal(t, 1, s.Live("mystery"))
	s.Release("mystery")
	assert.Equal(t, 0, s.Live("mystery"))
}
