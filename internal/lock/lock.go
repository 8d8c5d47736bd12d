// Package lock serializes booking writes per date.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when a key stays locked for the whole wait period.
var ErrBusy = errors.New("another booking for this date is in progress")

// Locker holds keys on behalf of an owner token. Unlock only releases a key
// still held by the same token, so a holder whose TTL ran out cannot free a
// lock taken over by someone else.
type Locker interface {
	Lock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// DateKey is the lock key guarding all bookings on date.
func DateKey(date time.Time) string {
	return "booking:" + date.Format(time.DateOnly)
}

// Acquire polls l until key is locked or wait elapses. The returned release
// function unlocks the key and is safe to call once.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(), error) {
	const retryEvery = 20 * time.Millisecond

	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.Lock(ctx, key, token, ttl)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() {
				ctxUnlock, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				_ = l.Unlock(ctxUnlock, key, token)
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, ErrBusy)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}

// MemoryLocker is a process-local Locker. Entries expire after their TTL so a
// crashed holder cannot block a date forever.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	nowFn func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), nowFn: time.Now}
}

func (m *MemoryLocker) Lock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	m.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryLocker) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.held[key]; ok && e.token == token {
		delete(m.held, key)
	}
	return nil
}
