package event

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	e := Normalize(Event{EventType: "order.created", Payload: map[string]any{"orderId": "12345"}})

	if e.ID == "" {
		t.Error("Normalize() did not assign an ID")
	}
	if e.Priority != PriorityNormal {
		t.Errorf("Normalize() priority = %q, want %q", e.Priority, PriorityNormal)
	}
	if e.IdempotencyKey == "" {
		t.Error("Normalize() did not derive an idempotency key")
	}
	if e.OccurredAt == "" {
		t.Error("Normalize() did not stamp occurred_at")
	}
}

func TestNormalizeKeepsExplicitFields(t *testing.T) {
	in := Event{
		ID:             "id-1",
		EventType:      "order.created",
		Priority:       PriorityHigh,
		IdempotencyKey: "caller-key",
		OccurredAt:     "2024-01-01T00:00:00Z",
	}
	out := Normalize(in)
	if out.ID != in.ID {
		t.Errorf("Normalize() changed ID: got %q, want %q", out.ID, in.ID)
	}
	if out.Priority != in.Priority {
		t.Errorf("Normalize() changed priority: got %q, want %q", out.Priority, in.Priority)
	}
	if out.IdempotencyKey != in.IdempotencyKey {
		t.Errorf("Normalize() changed idempotency key: got %q, want %q", out.IdempotencyKey, in.IdempotencyKey)
	}
	if out.OccurredAt != in.OccurredAt {
		t.Errorf("Normalize() changed occurred_at: got %q, want %q", out.OccurredAt, in.OccurredAt)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name:  "valid normal priority",
			event: Event{EventType: "user.registered", Priority: PriorityNormal},
		},
		{
			name:  "valid critical priority",
			event: Event{EventType: "payment.failed", Priority: PriorityCritical},
		},
		{
			name:    "empty event type",
			event:   Event{Priority: PriorityNormal},
			wantErr: true,
		},
		{
			name:    "unknown priority",
			event:   Event{EventType: "user.registered", Priority: "urgent"},
			wantErr: true,
		},
		{
			name:    "empty priority",
			event:   Event{EventType: "user.registered"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Validate() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestPriorityAtLeast(t *testing.T) {
	if !PriorityCritical.AtLeast(PriorityLow) {
		t.Error("critical should be at least low")
	}
	if PriorityLow.AtLeast(PriorityNormal) {
		t.Error("low should not be at least normal")
	}
	if !PriorityNormal.AtLeast(PriorityNormal) {
		t.Error("normal should be at least normal")
	}
}

func TestPriorityFastPath(t *testing.T) {
	tests := []struct {
		p    Priority
		want bool
	}{
		{PriorityLow, false},
		{PriorityNormal, false},
		{PriorityHigh, true},
		{PriorityCritical, true},
	}
	for _, tt := range tests {
		if got := tt.p.FastPath(); got != tt.want {
			t.Errorf("%s.FastPath() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestDeriveIdempotencyKeyStable(t *testing.T) {
	p1 := map[string]any{"a": 1, "b": "x", "c": true}
	p2 := map[string]any{"c": true, "b": "x", "a": 1}

	k1 := DeriveIdempotencyKey("order.created", p1)
	k2 := DeriveIdempotencyKey("order.created", p2)
	if k1 != k2 {
		t.Errorf("same payload produced different keys: %s vs %s", k1, k2)
	}
	if !strings.HasPrefix(k1, "evt-") {
		t.Errorf("key %q missing evt- prefix", k1)
	}

	if DeriveIdempotencyKey("order.updated", p1) == k1 {
		t.Error("different event types produced the same key")
	}
	if DeriveIdempotencyKey("order.created", map[string]any{"a": 2}) == k1 {
		t.Error("different payloads produced the same key")
	}
}
