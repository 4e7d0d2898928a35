package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// smsBodyLimit is the gateway's maximum message length; longer bodies are
// truncated rather than rejected.
const smsBodyLimit = 1600

// SMSAdapter delivers text messages through an HTTP SMS gateway using a
// form-encoded API with basic auth. The destination is an E.164 number.
type SMSAdapter struct {
	client     *http.Client
	gatewayURL string
	accountID  string
	authToken  string
	fromNumber string
}

func NewSMSAdapter(client *http.Client, gatewayURL, accountID, authToken, fromNumber string) *SMSAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SMSAdapter{
		client:     client,
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		accountID:  accountID,
		authToken:  authToken,
		fromNumber: fromNumber,
	}
}

func (a *SMSAdapter) Name() string { return SMS }

func (a *SMSAdapter) Send(ctx context.Context, destination string, msg Message) SendResult {
	if !validE164(destination) {
		return Permanent("invalid destination")
	}

	body := msg.Body
	if len(body) > smsBodyLimit {
		body = body[:smsBodyLimit]
	}

	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", a.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/accounts/%s/messages", a.gatewayURL, a.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Permanent("invalid request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.accountID, a.authToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	return classifyResponse(resp)
}

func (a *SMSAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.gatewayURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// validE164 accepts +, then 7 to 15 digits.
func validE164(s string) bool {
	if !strings.HasPrefix(s, "+") {
		return false
	}
	digits := s[1:]
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
