package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// pushTokenTTL bounds how long a signed gateway token stays valid. Tokens
// are minted per attempt, so a short TTL is enough.
const pushTokenTTL = 5 * time.Minute

// PushAdapter delivers in-app/push notifications through a push gateway.
// The gateway authenticates callers with a signed bearer token; the
// destination is the device token.
type PushAdapter struct {
	client     *http.Client
	gatewayURL string
	issuer     string
	signingKey []byte
}

type pushRequest struct {
	DeviceToken string `json:"device_token"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Priority    string `json:"priority"`
}

func NewPushAdapter(client *http.Client, gatewayURL, issuer string, signingKey []byte) *PushAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PushAdapter{
		client:     client,
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		issuer:     issuer,
		signingKey: signingKey,
	}
}

func (a *PushAdapter) Name() string { return Push }

func (a *PushAdapter) Send(ctx context.Context, destination string, msg Message) SendResult {
	if destination == "" {
		return Permanent("invalid destination")
	}

	title := msg.Subject
	if title == "" {
		title = msg.EventType
	}
	body, err := json.Marshal(pushRequest{
		DeviceToken: destination,
		Title:       title,
		Body:        msg.Body,
		Priority:    string(msg.Priority),
	})
	if err != nil {
		return Permanent("content rejected: " + err.Error())
	}

	token, err := a.bearerToken()
	if err != nil {
		// A signing failure is a configuration problem, not a transport
		// blip; retrying will not fix the key.
		return Permanent("auth failure: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.gatewayURL+"/v1/push", bytes.NewReader(body))
	if err != nil {
		return Permanent("invalid request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	return classifyResponse(resp)
}

func (a *PushAdapter) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("push gateway unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// bearerToken mints a short-lived HS256 token for the gateway.
func (a *PushAdapter) bearerToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(pushTokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
}
