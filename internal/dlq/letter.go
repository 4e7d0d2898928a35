// Package dlq is the dead-letter sink: terminal failed tasks are captured
// as letters, queryable and replayable by operators. Letters are written to
// a store and optionally published to a queue topic for external consumers.
package dlq

import (
	"fmt"
	"time"

	"github.com/heraldhq/herald/internal/dispatch"
)

const LetterType = "herald.dead_letter"

// Letter is the dead-letter envelope: a full snapshot of the failed task
// plus enough context to diagnose and replay it without joining other
// tables.
type Letter struct {
	Type       string        `json:"type"`    // "herald.dead_letter"
	Version    string        `json:"version"` // schema version
	At         string        `json:"at"`      // RFC3339 time the letter was written
	Reason     string        `json:"reason"`  // human/debug text
	State      string        `json:"state"`   // rejected | exhausted
	Attempts   int           `json:"attempts"`
	LastError  string        `json:"last_error,omitempty"`
	Task       dispatch.Task `json:"task"` // full task snapshot
	ReplayedAt string        `json:"replayed_at,omitempty"`
}

// NewLetter builds the envelope for a terminally failed task.
func NewLetter(t dispatch.Task, o dispatch.Outcome) Letter {
	return Letter{
		Type:      LetterType,
		Version:   "v1",
		At:        time.Now().UTC().Format(time.RFC3339Nano),
		Reason:    reason(o),
		State:     o.State,
		Attempts:  o.Attempts,
		LastError: o.LastError,
		Task:      t,
	}
}

func reason(o dispatch.Outcome) string {
	switch o.State {
	case dispatch.StateExhausted.String():
		return fmt.Sprintf("retry budget exhausted after %d attempts, last error=%s", o.Attempts, o.LastError)
	case dispatch.StateRejected.String():
		return fmt.Sprintf("permanent failure on attempt %d: %s", o.Attempts, o.LastError)
	}
	return o.LastError
}
