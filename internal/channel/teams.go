package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/heraldhq/herald/internal/event"
)

// TeamsAdapter delivers notifications to a collaboration-tool incoming
// webhook using the MessageCard format. The destination is the webhook URL.
type TeamsAdapter struct {
	client *http.Client
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Text          string      `json:"text"`
	Facts         []teamsFact `json:"facts,omitempty"`
}

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

func NewTeamsAdapter(client *http.Client) *TeamsAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TeamsAdapter{client: client}
}

func (a *TeamsAdapter) Name() string { return Teams }

func (a *TeamsAdapter) Send(ctx context.Context, destination string, msg Message) SendResult {
	if _, err := url.ParseRequestURI(destination); err != nil || !strings.HasPrefix(destination, "http") {
		return Permanent("invalid destination")
	}

	title := msg.Subject
	if title == "" {
		title = msg.EventType
	}
	card := teamsCard{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: themeColor(msg.Priority),
		Summary:    title,
		Sections: []teamsSection{{
			ActivityTitle: title,
			Text:          msg.Body,
			Facts:         buildFacts(msg.Fields),
		}},
	}
	body, err := json.Marshal(card)
	if err != nil {
		return Permanent("content rejected: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return Permanent("invalid destination")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	return classifyResponse(resp)
}

func (a *TeamsAdapter) HealthCheck(_ context.Context) error {
	if a.client == nil {
		return errors.New("teams adapter not configured")
	}
	return nil
}

func themeColor(p event.Priority) string {
	switch p {
	case event.PriorityCritical:
		return "CC0000"
	case event.PriorityHigh:
		return "FF8C00"
	default:
		return "36A64F"
	}
}

func buildFacts(fields map[string]string) []teamsFact {
	sf := buildFields(fields)
	facts := make([]teamsFact, 0, len(sf))
	for _, f := range sf {
		facts = append(facts, teamsFact{Name: f.Title, Value: f.Value})
	}
	return facts
}
