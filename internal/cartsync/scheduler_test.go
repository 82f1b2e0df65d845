package cartsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ultra-white/keda/internal/domain"
)

type syncRecorder struct {
	mu    sync.Mutex
	calls int
	last  []domain.LineItem
	block chan struct{} // when set, fn blocks until closed
	err   error
}

func (r *syncRecorder) fn(_ context.Context, snapshot snapshotFunc) error {
	r.mu.Lock()
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = snapshot()
	return r.err
}

func (r *syncRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *syncRecorder) lastItems() []domain.LineItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func TestScheduler_CoalescesBurstIntoOneCall(t *testing.T) {
	store := NewStore()
	rec := &syncRecorder{}
	sched := newScheduler(20*time.Millisecond, time.Second, store.Items, rec.fn)
	defer sched.Stop()

	// A burst of mutations inside one debounce window.
	for i := 0; i < 5; i++ {
		store.Add(product("a", "100", nil))
		sched.Schedule()
	}

	require.Eventually(t, func() bool {
		return rec.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	// The single call carries the state after the last mutation.
	items := rec.lastItems()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	// And no further call arrives.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, rec.callCount())
}

func TestScheduler_NewMutationRestartsWindow(t *testing.T) {
	store := NewStore()
	rec := &syncRecorder{}
	sched := newScheduler(40*time.Millisecond, time.Second, store.Items, rec.fn)
	defer sched.Stop()

	store.Add(product("a", "100", nil))
	sched.Schedule()
	time.Sleep(25 * time.Millisecond)

	// Still inside the window: the timer restarts, nothing fired yet.
	store.Add(product("b", "50", nil))
	sched.Schedule()
	assert.Equal(t, 0, rec.callCount())

	require.Eventually(t, func() bool {
		return rec.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.lastItems(), 2)
}

func TestScheduler_MutationDuringFlightStartsNewCycle(t *testing.T) {
	store := NewStore()
	rec := &syncRecorder{block: make(chan struct{})}
	sched := newScheduler(10*time.Millisecond, time.Second, store.Items, rec.fn)
	defer sched.Stop()

	store.Add(product("a", "100", nil))
	sched.Schedule()

	// Wait until the first call is in flight, then mutate again.
	time.Sleep(30 * time.Millisecond)
	store.Add(product("b", "50", nil))
	sched.Schedule()

	rec.mu.Lock()
	block := rec.block
	rec.block = nil
	rec.mu.Unlock()
	close(block)

	// The mid-flight mutation is not dropped: a second call follows.
	require.Eventually(t, func() bool {
		return rec.callCount() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.lastItems(), 2)
}

func TestScheduler_FlushSendsPendingImmediately(t *testing.T) {
	store := NewStore()
	rec := &syncRecorder{}
	sched := newScheduler(time.Hour, time.Second, store.Items, rec.fn)
	defer sched.Stop()

	store.Add(product("a", "100", nil))
	sched.Schedule()

	require.NoError(t, sched.Flush(context.Background()))
	assert.Equal(t, 1, rec.callCount())
	assert.Len(t, rec.lastItems(), 1)

	// Nothing pending, flush is a no-op.
	require.NoError(t, sched.Flush(context.Background()))
	assert.Equal(t, 1, rec.callCount())
}

func TestScheduler_FlushDrainsMutationLandedMidFlight(t *testing.T) {
	store := NewStore()
	rec := &syncRecorder{block: make(chan struct{})}
	sched := newScheduler(10*time.Millisecond, time.Second, store.Items, rec.fn)
	defer sched.Stop()

	store.Add(product("a", "100", nil))
	sched.Schedule()

	// First call is in flight; a second mutation lands meanwhile.
	time.Sleep(30 * time.Millisecond)
	store.Add(product("b", "50", nil))
	sched.Schedule()

	go func() {
		time.Sleep(20 * time.Millisecond)
		rec.mu.Lock()
		block := rec.block
		rec.block = nil
		rec.mu.Unlock()
		close(block)
	}()

	// Flush waits the in-flight call out and then transmits the state
	// the second mutation produced instead of dropping it.
	require.NoError(t, sched.Flush(context.Background()))
	assert.Equal(t, 2, rec.callCount())
	assert.Len(t, rec.lastItems(), 2)
}

func TestScheduler_StopPreventsFurtherCalls(t *testing.T) {
	store := NewStore()
	rec := &syncRecorder{}
	sched := newScheduler(10*time.Millisecond, time.Second, store.Items, rec.fn)

	store.Add(product("a", "100", nil))
	sched.Schedule()
	sched.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.callCount())
}
