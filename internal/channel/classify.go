package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// classifyTransportError maps a transport-level error (no HTTP status was
// obtained) to a retryable result. Timeouts, refused connections and DNS
// failures are all transient from the coordinator's point of view.
func classifyTransportError(err error) SendResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Retryable("timeout")
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"):
		return Retryable("timeout")
	case strings.Contains(lower, "connection refused"):
		return Retryable("connection_refused")
	case strings.Contains(lower, "no such host"), strings.Contains(lower, "dns"):
		return Retryable("dns_error")
	}
	return Retryable("network")
}

// classifyResponse maps an HTTP response to a SendResult. 2xx is success,
// 5xx and 429 are retryable (429 carries the server's Retry-After as the
// suggested delay), every other 4xx is permanent.
func classifyResponse(resp *http.Response) SendResult {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return Success()
	case status == http.StatusTooManyRequests:
		r := RetryableAfter("rate_limited", parseRetryAfter(resp.Header.Get("Retry-After")))
		r.HTTPStatus = status
		return r
	case status >= 500:
		r := Retryable(fmt.Sprintf("http_%d", status))
		r.HTTPStatus = status
		return r
	default:
		r := Permanent(fmt.Sprintf("http_%d", status))
		r.HTTPStatus = status
		return r
	}
}

// parseRetryAfter handles the delta-seconds form of Retry-After. The HTTP
// date form is rare from webhook endpoints and falls back to zero, letting
// computed backoff apply.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
