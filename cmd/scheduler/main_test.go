package main

import (
	"testing"
	"time"

	"github.com/heraldhq/herald/internal/config"
	"github.com/heraldhq/herald/internal/event"
)

func TestBuildEvent(t *testing.T) {
	s := config.ScheduleFile{
		Name: "daily-digest",
		Cron: "0 9 * * *",
		Event: config.ScheduledEvent{
			EventType: "digest.daily",
			Priority:  "low",
			Payload:   map[string]any{"message": "daily digest"},
			Channels:  []string{"chat"},
			Template:  "digest",
		},
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	e := buildEvent(s, at)
	if e.EventType != "digest.daily" || e.Source != "herald-scheduler" {
		t.Errorf("event = %+v", e)
	}
	if e.Priority != event.PriorityLow {
		t.Errorf("priority = %q", e.Priority)
	}
	if e.ID == "" {
		t.Error("firing must get a fresh ID")
	}
	if e.Payload["schedule"] != "daily-digest" || e.Payload["fired_at"] != "2026-03-01T09:00:00Z" {
		t.Errorf("payload = %v", e.Payload)
	}
	if e.Payload["message"] != "daily digest" {
		t.Errorf("configured payload lost: %v", e.Payload)
	}
	if len(e.Channels) != 1 || e.Template != "digest" {
		t.Errorf("explicit routing lost: channels=%v template=%q", e.Channels, e.Template)
	}

	// two firings of the same schedule must not share an idempotency key
	e2 := buildEvent(s, at.Add(24*time.Hour))
	k1 := event.Normalize(e).IdempotencyKey
	k2 := event.Normalize(e2).IdempotencyKey
	if k1 == k2 {
		t.Error("distinct firings derived the same idempotency key")
	}

	// the buildEvent payload map is a copy
	if _, ok := s.Event.Payload["fired_at"]; ok {
		t.Error("buildEvent mutated the schedule's payload")
	}
}
