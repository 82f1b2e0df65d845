package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/ultra-white/keda/internal/domain"
)

// DefaultSyncDelay is the trailing-edge debounce window for server
// persistence.
const DefaultSyncDelay = 300 * time.Millisecond

type syncFunc func(ctx context.Context, snapshot snapshotFunc) error

// snapshotFunc yields the cart state to persist. It is taken at fire
// time, not schedule time, so an in-flight cycle always transmits the
// latest list.
type snapshotFunc func() []domain.LineItem

// scheduler coalesces mutation bursts into single persistence calls.
// Every Schedule cancels and restarts the timer; when it fires the
// latest snapshot is sent. A mutation arriving while a call is in
// flight marks the state dirty and a fresh cycle starts after the
// call completes, so nothing is dropped and writes never overlap.
type scheduler struct {
	mu       sync.Mutex
	inflight *sync.Cond // signals an in-flight call completing
	delay    time.Duration
	timeout  time.Duration
	fn       syncFunc
	snapshot snapshotFunc
	timer    *time.Timer
	dirty    bool
	syncing  bool
	stopped  bool
}

func newScheduler(delay, timeout time.Duration, snapshot snapshotFunc, fn syncFunc) *scheduler {
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	s := &scheduler{
		delay:    delay,
		timeout:  timeout,
		fn:       fn,
		snapshot: snapshot,
	}
	s.inflight = sync.NewCond(&s.mu)
	return s
}

// Schedule restarts the debounce window. Called on every mutation.
func (s *scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.dirty = true
	if s.syncing {
		// Captured by a new cycle once the in-flight call returns.
		return
	}
	s.restartTimerLocked()
}

func (s *scheduler) restartTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *scheduler) fire() {
	s.mu.Lock()
	if s.stopped || s.syncing || !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	s.syncing = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	_ = s.fn(ctx, s.snapshot) // fn reports its own failures
	cancel()

	s.mu.Lock()
	s.syncing = false
	s.inflight.Broadcast()
	if s.dirty && !s.stopped {
		s.restartTimerLocked()
	}
	s.mu.Unlock()
}

// Flush persists any pending state immediately. An in-flight call is
// waited out first: a mutation that landed mid-flight is still dirty
// and must go out, not be dropped. Used on session close; a
// navigation away mid-window must still end in a persisted cart.
func (s *scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	for s.syncing {
		s.inflight.Wait()
	}
	if !s.dirty || s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.dirty = false
	s.syncing = true
	s.mu.Unlock()

	err := s.fn(ctx, s.snapshot)

	s.mu.Lock()
	s.syncing = false
	s.inflight.Broadcast()
	s.mu.Unlock()
	return err
}

func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
