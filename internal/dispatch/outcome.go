package dispatch

import (
	"context"
	"sync"
)

// MemoryOutcomeStore keeps terminal outcomes in memory. Suitable for tests
// and single-process deployments; the engine uses the Postgres store in
// production.
type MemoryOutcomeStore struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	order    []string
}

func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{outcomes: make(map[string]Outcome)}
}

// Record stores the outcome. One outcome exists per task life; a replayed
// task writes a fresh outcome under the same ID.
func (s *MemoryOutcomeStore) Record(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[o.TaskID]; !ok {
		s.order = append(s.order, o.TaskID)
	}
	s.outcomes[o.TaskID] = o
	return nil
}

// Get returns the outcome for a task ID.
func (s *MemoryOutcomeStore) Get(taskID string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[taskID]
	return o, ok
}

// All returns outcomes in completion order.
func (s *MemoryOutcomeStore) All() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.outcomes[id])
	}
	return out
}
