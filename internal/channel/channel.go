// Package channel defines the delivery-channel contract and the reference
// adapters. Every adapter performs exactly one external call per Send and
// classifies every failure as retryable or permanent; the coordinator's
// retry behavior depends entirely on that classification.
package channel

import (
	"context"
	"time"

	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/template"
)

// Well-known channel names. The coordinator treats channels as opaque
// strings; these are the identifiers the reference adapters register under.
const (
	Chat  = "chat"  // chat webhook (Slack-style incoming webhook)
	Email = "email" // email-sending service
	SMS   = "sms"   // SMS gateway
	Teams = "teams" // collaboration-tool webhook
	Push  = "push"  // in-app / push gateway
)

// Message is the fully rendered content handed to an adapter, together with
// the event context rich channels use for formatting (attachment colors,
// context fields).
type Message struct {
	template.Rendered
	EventType string
	Priority  event.Priority
	Fields    map[string]string
}

// Status is the adapter's classification of a send attempt.
type Status int

const (
	StatusSuccess Status = iota
	StatusRetryable
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetryable:
		return "retryable"
	case StatusPermanent:
		return "permanent"
	}
	return "unknown"
}

// SendResult reports the outcome of one delivery attempt. SuggestedDelay is
// only meaningful for retryable results and overrides computed backoff when
// set (rate-limit Retry-After).
type SendResult struct {
	Status         Status
	Reason         string
	HTTPStatus     int
	SuggestedDelay time.Duration
}

func Success() SendResult {
	return SendResult{Status: StatusSuccess}
}

func Retryable(reason string) SendResult {
	return SendResult{Status: StatusRetryable, Reason: reason}
}

func RetryableAfter(reason string, delay time.Duration) SendResult {
	return SendResult{Status: StatusRetryable, Reason: reason, SuggestedDelay: delay}
}

func Permanent(reason string) SendResult {
	return SendResult{Status: StatusPermanent, Reason: reason}
}

// Adapter is the capability-uniform channel interface. Send must classify
// every error; returning a Go error is reserved for programmer mistakes, so
// the contract is a SendResult, never (result, error).
type Adapter interface {
	// Name returns the channel identifier the adapter serves.
	Name() string
	// Send performs one external delivery attempt to destination. The
	// context carries the per-attempt timeout.
	Send(ctx context.Context, destination string, msg Message) SendResult
	// HealthCheck probes the transport, for readiness reporting only.
	HealthCheck(ctx context.Context) error
}
