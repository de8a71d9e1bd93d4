package service

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-class-assigner/internal/models"
)

// runStore keeps runs in memory until their TTL elapses. Runs are stored by value and
// their assignment maps are never mutated once completed.
type runStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]models.AssignmentRun
}

func newRunStore(ttl time.Duration, now func() time.Time) *runStore {
	if now == nil {
		now = time.Now
	}
	return &runStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]models.AssignmentRun),
	}
}

func (s *runStore) Save(run models.AssignmentRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[run.ID] = run
}

func (s *runStore) Get(id string) (models.AssignmentRun, bool) {
	s.mu.RLock()
	run, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.AssignmentRun{}, false
	}
	if s.expired(run) {
		s.Delete(id)
		return models.AssignmentRun{}, false
	}
	return run, true
}

func (s *runStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

// Purge drops expired runs and returns how many were removed.
func (s *runStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, run := range s.items {
		if s.expired(run) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *runStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *runStore) expired(run models.AssignmentRun) bool {
	return s.ttl > 0 && s.now().Sub(run.CreatedAt) > s.ttl
}
