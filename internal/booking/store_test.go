package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDraftStore(timeout time.Duration) (*DraftStore, *fakeClock) {
	clock := &fakeClock{now: testNow}
	s := NewDraftStore(timeout)
	s.now = clock.Now
	return s, clock
}

func TestDraftStore_CreateGetSave(t *testing.T) {
	s, clock := newTestDraftStore(time.Minute)

	w := s.Create()
	require.NotEmpty(t, w.ID)
	assert.Equal(t, StateSelectingAddress, w.State)
	assert.Equal(t, testNow, w.UpdatedAt)

	got, ok := s.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, w, got)

	clock.Advance(30 * time.Second)
	w.State = StateSelectingService
	saved := s.Save(w)
	assert.Equal(t, testNow.Add(30*time.Second), saved.UpdatedAt)

	got, ok = s.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, StateSelectingService, got.State)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestDraftStore_Expiry(t *testing.T) {
	s, clock := newTestDraftStore(time.Minute)

	stale := s.Create()
	clock.Advance(45 * time.Second)
	fresh := s.Create()
	clock.Advance(30 * time.Second)

	_, ok := s.Get(stale.ID)
	assert.False(t, ok)
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, 1, s.Len())

	s.Delete(fresh.ID)
	assert.Zero(t, s.Len())
}

func TestDraftStore_DefaultTimeout(t *testing.T) {
	s := NewDraftStore(0)
	assert.Equal(t, 30*time.Minute, s.timeout)
}

func TestDraftStore_RunCleanupStopsWithContext(t *testing.T) {
	s, clock := newTestDraftStore(time.Minute)
	s.Create()
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunCleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

func TestDraftStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestDraftStore(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.Create()
			w.State = StateSelectingService
			s.Save(w)
			_, _ = s.Get(w.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
