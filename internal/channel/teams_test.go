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

func teamsMessage() Message {
	return Message{
		Rendered: template.Rendered{
			Template: "deploy-finished",
			Channel:  Teams,
			Subject:  "Deploy finished",
			Body:     "Build 99 is live.",
		},
		EventType: "deploy.finished",
		Priority:  event.PriorityNormal,
		Fields:    map[string]string{"build": "99"},
	}
}

func TestTeamsSendClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus Status
	}{
		{"200 ok", http.StatusOK, StatusSuccess},
		{"500 retryable", http.StatusInternalServerError, StatusRetryable},
		{"429 retryable", http.StatusTooManyRequests, StatusRetryable},
		{"404 permanent", http.StatusNotFound, StatusPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			a := NewTeamsAdapter(srv.Client())
			res := a.Send(context.Background(), srv.URL, teamsMessage())
			if res.Status != tt.wantStatus {
				t.Errorf("Send() status = %v, want %v", res.Status, tt.wantStatus)
			}
		})
	}
}

func TestTeamsCardShape(t *testing.T) {
	var got teamsCard
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msg := teamsMessage()
	msg.Priority = event.PriorityHigh
	a := NewTeamsAdapter(srv.Client())
	if res := a.Send(context.Background(), srv.URL, msg); res.Status != StatusSuccess {
		t.Fatalf("Send() failed: %+v", res)
	}

	if got.Type != "MessageCard" {
		t.Errorf("@type = %q", got.Type)
	}
	if got.ThemeColor != "FF8C00" {
		t.Errorf("high priority theme color = %q", got.ThemeColor)
	}
	if got.Summary != "Deploy finished" {
		t.Errorf("summary = %q", got.Summary)
	}
	if len(got.Sections) != 1 || got.Sections[0].Text != "Build 99 is live." {
		t.Errorf("sections = %+v", got.Sections)
	}
	if len(got.Sections[0].Facts) != 1 || got.Sections[0].Facts[0].Name != "Build" {
		t.Errorf("facts = %+v", got.Sections[0].Facts)
	}
}

func TestTeamsInvalidDestination(t *testing.T) {
	a := NewTeamsAdapter(nil)
	if res := a.Send(context.Background(), "::bad::", teamsMessage()); res.Status != StatusPermanent {
		t.Errorf("Send() status = %v, want permanent", res.Status)
	}
}
