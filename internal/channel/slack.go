package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/heraldhq/herald/internal/event"
)

// SlackAdapter delivers chat notifications through a Slack-style incoming
// webhook. The destination is the webhook URL itself.
type SlackAdapter struct {
	client  *http.Client
	botName string
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

func NewSlackAdapter(client *http.Client, botName string) *SlackAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if botName == "" {
		botName = "Herald"
	}
	return &SlackAdapter{client: client, botName: botName}
}

func (a *SlackAdapter) Name() string { return Chat }

func (a *SlackAdapter) Send(ctx context.Context, destination string, msg Message) SendResult {
	if _, err := url.ParseRequestURI(destination); err != nil || !strings.HasPrefix(destination, "http") {
		return Permanent("invalid destination")
	}

	body, err := json.Marshal(a.buildMessage(msg))
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

// HealthCheck is a no-op for webhook channels: there is no probe endpoint
// that does not also post a message.
func (a *SlackAdapter) HealthCheck(_ context.Context) error {
	if a.client == nil {
		return errors.New("slack adapter not configured")
	}
	return nil
}

// buildMessage shapes the rendered content into a Slack attachment: color
// from priority and event type, context fields from the event payload.
func (a *SlackAdapter) buildMessage(msg Message) slackMessage {
	title := msg.Subject
	if title == "" {
		title = msg.EventType
	}
	return slackMessage{
		Text:     fmt.Sprintf("*%s*", title),
		Username: a.botName,
		Attachments: []slackAttachment{{
			Color:  messageColor(msg.Priority, msg.EventType),
			Text:   msg.Body,
			Fields: buildFields(msg.Fields),
			Footer: "Herald Notification Service",
			TS:     time.Now().Unix(),
		}},
	}
}

// messageColor picks the attachment color: priority first, then keywords in
// the event type, then a neutral default.
func messageColor(p event.Priority, eventType string) string {
	switch p {
	case event.PriorityCritical:
		return "danger"
	case event.PriorityHigh:
		return "warning"
	}
	lower := strings.ToLower(eventType)
	switch {
	case containsAny(lower, "error", "failure", "failed"):
		return "danger"
	case containsAny(lower, "warning", "alert"):
		return "warning"
	case containsAny(lower, "success", "completed"):
		return "good"
	}
	return "#36a64f"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// buildFields turns payload context into attachment fields, sorted for
// stable output. Field names are converted from snake_case to Title Case;
// short values render side by side.
func buildFields(fields map[string]string) []slackField {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]slackField, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		out = append(out, slackField{
			Title: titleCase(k),
			Value: v,
			Short: len(v) < 40,
		})
	}
	return out
}

func titleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
