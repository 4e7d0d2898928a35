package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/template"
)

func chatMessage() Message {
	return Message{
		Rendered: template.Rendered{
			Template: "order-created",
			Channel:  Chat,
			Body:     "Order 12345 created",
		},
		EventType: "order.created",
		Priority:  event.PriorityNormal,
		Fields:    map[string]string{"order_id": "12345", "source": "api"},
	}
}

func TestSlackSendClassification(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus Status
	}{
		{
			name:       "2xx success",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
			wantStatus: StatusSuccess,
		},
		{
			name:       "5xx retryable",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantStatus: StatusRetryable,
		},
		{
			name: "429 retryable with delay",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantStatus: StatusRetryable,
		},
		{
			name:       "4xx permanent",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantStatus: StatusPermanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := NewSlackAdapter(srv.Client(), "")
			res := a.Send(context.Background(), srv.URL, chatMessage())
			if res.Status != tt.wantStatus {
				t.Errorf("Send() status = %v, want %v", res.Status, tt.wantStatus)
			}
		})
	}
}

func TestSlackSendInvalidDestination(t *testing.T) {
	a := NewSlackAdapter(nil, "")
	res := a.Send(context.Background(), "not a url", chatMessage())
	if res.Status != StatusPermanent {
		t.Errorf("Send() status = %v, want permanent", res.Status)
	}
}

func TestSlackSendConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // force connection refused

	a := NewSlackAdapter(nil, "")
	res := a.Send(context.Background(), url, chatMessage())
	if res.Status != StatusRetryable {
		t.Errorf("Send() status = %v, want retryable", res.Status)
	}
}

func TestSlackMessageShape(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msg := chatMessage()
	msg.Priority = event.PriorityCritical
	a := NewSlackAdapter(srv.Client(), "Notify Bot")
	if res := a.Send(context.Background(), srv.URL, msg); res.Status != StatusSuccess {
		t.Fatalf("Send() failed: %+v", res)
	}

	if got.Username != "Notify Bot" {
		t.Errorf("username = %q", got.Username)
	}
	if got.Text != "*order.created*" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Color != "danger" {
		t.Errorf("critical priority color = %q, want danger", att.Color)
	}
	if att.Text != "Order 12345 created" {
		t.Errorf("attachment text = %q", att.Text)
	}
	// fields sorted by key: order_id, source
	if len(att.Fields) != 2 || att.Fields[0].Title != "Order Id" || att.Fields[1].Title != "Source" {
		t.Errorf("fields = %+v", att.Fields)
	}
	if !att.Fields[0].Short {
		t.Error("short value should render as a short field")
	}
}

func TestMessageColor(t *testing.T) {
	tests := []struct {
		priority  event.Priority
		eventType string
		want      string
	}{
		{event.PriorityCritical, "anything", "danger"},
		{event.PriorityHigh, "anything", "warning"},
		{event.PriorityNormal, "payment.failed", "danger"},
		{event.PriorityNormal, "disk.alert", "warning"},
		{event.PriorityNormal, "backup.completed", "good"},
		{event.PriorityNormal, "user.registered", "#36a64f"},
	}
	for _, tt := range tests {
		if got := messageColor(tt.priority, tt.eventType); got != tt.want {
			t.Errorf("messageColor(%s, %s) = %q, want %q", tt.priority, tt.eventType, got, tt.want)
		}
	}
}
