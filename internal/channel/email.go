package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EmailAdapter delivers mail through an HTTP email-sending service. The
// destination is the recipient address; the service endpoint and sender are
// adapter configuration.
type EmailAdapter struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	fromAddr string
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewEmailAdapter(client *http.Client, baseURL, apiKey, fromAddr string) *EmailAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &EmailAdapter{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		fromAddr: fromAddr,
	}
}

func (a *EmailAdapter) Name() string { return Email }

func (a *EmailAdapter) Send(ctx context.Context, destination string, msg Message) SendResult {
	if !strings.Contains(destination, "@") {
		return Permanent("invalid destination")
	}

	subject := msg.Subject
	if subject == "" {
		subject = msg.EventType
	}
	body, err := json.Marshal(emailRequest{
		From:    a.fromAddr,
		To:      destination,
		Subject: subject,
		Body:    msg.Body,
	})
	if err != nil {
		return Permanent("content rejected: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Permanent("invalid request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	return classifyResponse(resp)
}

func (a *EmailAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
