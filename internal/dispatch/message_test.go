package dispatch

import (
	"context"
	"testing"
)

func TestContextFields(t *testing.T) {
	payload := map[string]any{
		"message":   "already in the body",
		"priority":  "high",
		"timestamp": "2024-01-01T00:00:00Z",
		"_internal": "hidden",
		"order_id":  "12345",
		"amount":    99.5,
		"retries":   3,
	}
	got := contextFields(payload)

	for _, excluded := range []string{"message", "priority", "timestamp", "_internal"} {
		if _, ok := got[excluded]; ok {
			t.Errorf("field %q should be excluded", excluded)
		}
	}
	if got["order_id"] != "12345" {
		t.Errorf("order_id = %q", got["order_id"])
	}
	if got["amount"] != "99.5" {
		t.Errorf("amount = %q", got["amount"])
	}
	if got["retries"] != "3" {
		t.Errorf("retries = %q", got["retries"])
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if contextFields(nil) != nil {
		t.Error("nil payload should produce nil fields")
	}
	if contextFields(map[string]any{"message": "x"}) != nil {
		t.Error("payload with only excluded keys should produce nil fields")
	}
}

func TestMemoryOutcomeStore(t *testing.T) {
	s := NewMemoryOutcomeStore()
	ctx := context.Background()

	if err := s.Record(ctx, Outcome{TaskID: "t1", State: "delivered", Attempts: 1}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := s.Record(ctx, Outcome{TaskID: "t2", State: "rejected", Attempts: 1}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	o, ok := s.Get("t1")
	if !ok || o.State != "delivered" {
		t.Errorf("Get(t1) = %+v, %v", o, ok)
	}
	all := s.All()
	if len(all) != 2 || all[0].TaskID != "t1" || all[1].TaskID != "t2" {
		t.Errorf("All() = %+v", all)
	}

	// replay overwrites under the same ID without duplicating the entry
	_ = s.Record(ctx, Outcome{TaskID: "t1", State: "exhausted", Attempts: 5})
	o, _ = s.Get("t1")
	if o.State != "exhausted" {
		t.Errorf("replayed outcome = %+v", o)
	}
	if len(s.All()) != 2 {
		t.Errorf("All() after replay = %d entries, want 2", len(s.All()))
	}
}
