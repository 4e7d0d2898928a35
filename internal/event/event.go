package event

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned when an inbound event fails validation.
// It is the only failure surfaced synchronously to the producer.
var ErrInvalidEvent = errors.New("invalid event")

// Priority orders events for scheduling. High and critical events take the
// fast path through the coordinator.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// rank maps priorities to a comparable order. Unknown priorities rank below low.
func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// Valid reports whether p is one of the four defined levels.
func (p Priority) Valid() bool {
	return p.rank() > 0
}

// AtLeast reports whether p is at or above min.
func (p Priority) AtLeast(min Priority) bool {
	return p.rank() >= min.rank()
}

// FastPath reports whether the priority qualifies for fast-path scheduling.
func (p Priority) FastPath() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// Event is the producer-supplied unit of work. Immutable once accepted:
// Normalize/Validate run at ingress and the event is never mutated after.
type Event struct {
	ID             string            `json:"id"`
	EventType      string            `json:"event_type"`
	Source         string            `json:"source,omitempty"`
	Priority       Priority          `json:"priority"`
	Payload        map[string]any    `json:"payload"`
	Channels       []string          `json:"channels,omitempty"`
	Template       string            `json:"template,omitempty"`
	IdempotencyKey string            `json:"idempotency_key"`
	OccurredAt     string            `json:"occurred_at"`             // RFC3339
	TraceHeaders   map[string]string `json:"trace_headers,omitempty"` // OTel trace propagation headers
}

// Normalize fills defaults for fields the producer may omit: ID, priority,
// idempotency key, and timestamp. It returns a copy; the input is not touched.
func Normalize(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}
	if e.IdempotencyKey == "" {
		e.IdempotencyKey = DeriveIdempotencyKey(e.EventType, e.Payload)
	}
	if e.OccurredAt == "" {
		e.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return e
}

// Validate checks the fields the engine depends on. Call after Normalize.
func Validate(e Event) error {
	if e.EventType == "" {
		return fmt.Errorf("%w: event_type is required", ErrInvalidEvent)
	}
	if !e.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidEvent, e.Priority)
	}
	return nil
}

// DeriveIdempotencyKey builds a stable key from the event type and payload so
// that duplicate submissions of the same logical event coalesce even when the
// producer did not assign a key. Payload keys are visited in sorted order to
// keep the hash independent of map iteration.
func DeriveIdempotencyKey(eventType string, payload map[string]any) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(eventType))
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, payload[k])
	}
	return fmt.Sprintf("evt-%016x", h.Sum64())
}
