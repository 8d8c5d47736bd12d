package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DraftStore keeps workflows between requests. Entries idle longer than the
// timeout are treated as gone.
type DraftStore struct {
	items   map[string]Workflow
	mu      sync.RWMutex
	timeout time.Duration
	now     func() time.Time
}

// NewDraftStore creates a new draft store.
func NewDraftStore(timeout time.Duration) *DraftStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &DraftStore{
		items:   make(map[string]Workflow),
		timeout: timeout,
		now:     time.Now,
	}
}

// Create starts and stores a new workflow.
func (s *DraftStore) Create() Workflow {
	return s.Save(NewWorkflow(uuid.NewString()))
}

// Get returns a live workflow.
func (s *DraftStore) Get(id string) (Workflow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.items[id]
	if !ok || s.expired(w) {
		return Workflow{}, false
	}
	return w, true
}

// Save stores w, refreshes its idle timer and returns the stored value.
func (s *DraftStore) Save(w Workflow) Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.UpdatedAt = s.now()
	s.items[w.ID] = w
	return w
}

// Delete removes a workflow.
func (s *DraftStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Len returns the number of stored workflows, expired ones included.
func (s *DraftStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Cleanup removes expired workflows.
func (s *DraftStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, w := range s.items {
		if s.expired(w) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx ends.
func (s *DraftStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

func (s *DraftStore) expired(w Workflow) bool {
	return s.now().Sub(w.UpdatedAt) > s.timeout
}
