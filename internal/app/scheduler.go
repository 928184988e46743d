package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// Scheduler admits work per concurrency class: each class has a FIFO queue
// and a configured ceiling on simultaneously live runs. Heavyweight
// downloads and lightweight metadata fetches get independent ceilings so
// neither starves the other.
type Scheduler struct {
	mu      sync.Mutex
	classes map[domain.ConcurrencyClass]*classState
	logger  *zap.Logger
}

type classState struct {
	limit int
	live  int
	queue []*admission
}

// admission is one queued entry: either an async run closure or a blocked
// synchronous acquirer waiting on ready.
type admission struct {
	run       func()
	ready     chan struct{}
	abandoned bool
}

// NewScheduler creates a scheduler with the given per-class ceilings.
// Classes with a non-positive ceiling are clamped to 1.
func NewScheduler(limits map[domain.ConcurrencyClass]int, logger *zap.Logger) *Scheduler {
	classes := make(map[domain.ConcurrencyClass]*classState, len(limits))
	for class, limit := range limits {
		if limit < 1 {
			limit = 1
		}
		classes[class] = &classState{limit: limit}
	}
	return &Scheduler{classes: classes, logger: logger}
}

func (s *Scheduler) class(c domain.ConcurrencyClass) *classState {
	cs, ok := s.classes[c]
	if !ok {
		// Unknown classes run serialized rather than unbounded.
		cs = &classState{limit: 1}
		s.classes[c] = cs
	}
	return cs
}

// Enqueue submits run for asynchronous execution in the given class. It
// starts immediately when a slot is free, otherwise it queues FIFO. The
// slot is released when run returns.
func (s *Scheduler) Enqueue(class domain.ConcurrencyClass, run func()) {
	s.mu.Lock()
	cs := s.class(class)
	if cs.live < cs.limit {
		cs.live++
		s.mu.Unlock()
		go s.execute(class, run)
		return
	}
	cs.queue = append(cs.queue, &admission{run: run})
	queued := len(cs.queue)
	s.mu.Unlock()

	s.logger.Debug("Task queued for admission",
		zap.String("class", string(class)),
		zap.Int("queued", queued))
}

func (s *Scheduler) execute(class domain.ConcurrencyClass, run func()) {
	defer s.Release(class)
	run()
}

// Acquire blocks until a slot in class is free or the caller's context is
// done. On success the caller owns one slot and must call Release. Waiting
// happens on a release signal, never by spinning.
func (s *Scheduler) Acquire(ctx context.Context, class domain.ConcurrencyClass) error {
	s.mu.Lock()
	cs := s.class(class)
	if cs.live < cs.limit {
		cs.live++
		s.mu.Unlock()
		return nil
	}
	a := &admission{ready: make(chan struct{})}
	cs.queue = append(cs.queue, a)
	s.mu.Unlock()

	select {
	case <-a.ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		a.abandoned = true
		s.mu.Unlock()
		// The slot may have been granted in the race with ctx.Done; the
		// abandoned flag makes admitNext skip it, and an already-signalled
		// grant is handed back here.
		select {
		case <-a.ready:
			s.Release(class)
		default:
		}
		return ctx.Err()
	}
}

// Release frees one slot in class and admits the next queued entry, if any.
func (s *Scheduler) Release(class domain.ConcurrencyClass) {
	s.mu.Lock()
	cs := s.class(class)
	if cs.live > 0 {
		cs.live--
	}
	s.admitNext(class, cs)
	s.mu.Unlock()
}

// admitNext pops queued admissions until one is started. Caller holds s.mu.
func (s *Scheduler) admitNext(class domain.ConcurrencyClass, cs *classState) {
	for cs.live < cs.limit && len(cs.queue) > 0 {
		a := cs.queue[0]
		cs.queue = cs.queue[1:]
		if a.abandoned {
			continue
		}
		cs.live++
		if a.run != nil {
			go s.execute(class, a.run)
		} else {
			close(a.ready)
		}
		return
	}
}

// Live returns the number of live runs in class.
func (s *Scheduler) Live(class domain.ConcurrencyClass) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.class(class).live
}

// QueueLen returns the number of entries waiting for admission in class.
func (s *Scheduler) QueueLen(class domain.ConcurrencyClass) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.class(class).queue)
}
