// Package dispatch implements the delivery coordinator: the state machine
// that takes routed delivery tasks through dispatch, retry with backoff,
// and terminal outcome recording, with per-channel worker pools and
// per-task leases.
package dispatch

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/heraldhq/herald/internal/event"
)

// State is the lifecycle position of a delivery task.
//
//	Pending → InFlight → {Delivered | AwaitingRetry | Rejected}
//	AwaitingRetry → InFlight | Exhausted
//
// Delivered, Rejected, Exhausted and Cancelled are terminal.
type State int32

const (
	StatePending State = iota
	StateInFlight
	StateAwaitingRetry
	StateDelivered
	StateRejected
	StateExhausted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateAwaitingRetry:
		return "awaiting_retry"
	case StateDelivered:
		return "delivered"
	case StateRejected:
		return "rejected"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the state ends the task's lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateDelivered, StateRejected, StateExhausted, StateCancelled:
		return true
	}
	return false
}

// Task is one unit of delivery work: one event to one destination on one
// channel. The coordinator owns all state transitions; everything else
// treats a Task as read-only.
type Task struct {
	ID           string      `json:"id"`
	Event        event.Event `json:"event"`
	Channel      string      `json:"channel"`
	Destination  string      `json:"destination"`
	Template     string      `json:"template"`
	FastPath     bool        `json:"fast_path,omitempty"`
	Attempt      int         `json:"attempt"`
	NextEligible time.Time   `json:"next_eligible"`
	State        State       `json:"state"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
	LastError    string      `json:"last_error,omitempty"`

	// seq orders tasks of equal scheduling class within a channel pool.
	seq uint64
}

// loadState reads State without a lock. Cancel flips State under the
// coordinator lock while the task may still sit in a pool heap, so any
// read outside that lock goes through here.
func (t *Task) loadState() State {
	return State(atomic.LoadInt32((*int32)(&t.State)))
}

func (t *Task) storeState(s State) {
	atomic.StoreInt32((*int32)(&t.State), int32(s))
}

// TaskID derives the stable identifier for the (idempotency key, channel,
// destination) tuple. Two submissions with the same tuple map to the same
// task and are coalesced while one is live.
func TaskID(idempotencyKey, channel, destination string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", idempotencyKey, channel, destination)
	return fmt.Sprintf("tsk-%016x", h.Sum64())
}

// NewTask builds a Pending task for the given event and target.
func NewTask(e event.Event, channel, destination, tmpl string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:           TaskID(e.IdempotencyKey, channel, destination),
		Event:        e,
		Channel:      channel,
		Destination:  destination,
		Template:     tmpl,
		FastPath:     e.Priority.FastPath(),
		State:        StatePending,
		NextEligible: now,
		EnqueuedAt:   now,
	}
}

// Outcome is the immutable terminal record for a task. Written exactly once
// when the task leaves the live set.
type Outcome struct {
	TaskID      string    `json:"task_id"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	State       string    `json:"state"` // delivered | exhausted | rejected
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
