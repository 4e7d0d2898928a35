package dlq

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLetterNotFound is returned when a task ID has no dead letter.
var ErrLetterNotFound = errors.New("dead letter not found")

// Filter narrows a List call. Zero-value fields match everything.
type Filter struct {
	Channel   string
	EventType string
	State     string // rejected | exhausted
	Limit     int    // 0 means no limit
}

// Store persists dead letters. Add must be idempotent on task ID: a
// replayed task that fails again overwrites its previous letter.
type Store interface {
	Add(ctx context.Context, l Letter) error
	Get(ctx context.Context, taskID string) (Letter, error)
	List(ctx context.Context, f Filter) ([]Letter, error)
	MarkReplayed(ctx context.Context, taskID string, at time.Time) error
}

// MemStore is an in-memory Store for tests and single-process setups.
type MemStore struct {
	mu      sync.Mutex
	letters map[string]Letter
	order   []string
}

func NewMemStore() *MemStore {
	return &MemStore{letters: make(map[string]Letter)}
}

func (s *MemStore) Add(_ context.Context, l Letter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[l.Task.ID]; !ok {
		s.order = append(s.order, l.Task.ID)
	}
	s.letters[l.Task.ID] = l
	return nil
}

func (s *MemStore) Get(_ context.Context, taskID string) (Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.letters[taskID]
	if !ok {
		return Letter{}, ErrLetterNotFound
	}
	return l, nil
}

func (s *MemStore) List(_ context.Context, f Filter) ([]Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Letter, 0, len(s.order))
	for _, id := range s.order {
		l := s.letters[id]
		if !matches(l, f) {
			continue
		}
		out = append(out, l)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) MarkReplayed(_ context.Context, taskID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.letters[taskID]
	if !ok {
		return ErrLetterNotFound
	}
	l.ReplayedAt = at.UTC().Format(time.RFC3339Nano)
	s.letters[taskID] = l
	return nil
}

func matches(l Letter, f Filter) bool {
	if f.Channel != "" && l.Task.Channel != f.Channel {
		return false
	}
	if f.EventType != "" && l.Task.Event.EventType != f.EventType {
		return false
	}
	if f.State != "" && l.State != f.State {
		return false
	}
	return true
}
