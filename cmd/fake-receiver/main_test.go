package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/heraldhq/herald/internal/config"
)

func TestFailFirstN(t *testing.T) {
	rcv := &receiver{cfg: config.FakeReceiver{FailFirstN: 2}}

	for i, want := range []int{
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusOK,
		http.StatusOK,
	} {
		w := httptest.NewRecorder()
		rcv.handleHook(w, httptest.NewRequest("POST", "/hook", strings.NewReader(`{"text":"hi"}`)))
		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
}

func TestRateLimitEveryN(t *testing.T) {
	rcv := &receiver{cfg: config.FakeReceiver{RateLimitEveryN: 3, RetryAfter: 7}}

	for i := 1; i <= 6; i++ {
		w := httptest.NewRecorder()
		rcv.handleHook(w, httptest.NewRequest("POST", "/hook", strings.NewReader("{}")))
		if i%3 == 0 {
			if w.Code != http.StatusTooManyRequests {
				t.Errorf("request %d: status = %d, want 429", i, w.Code)
			}
			if ra := w.Header().Get("Retry-After"); ra != "7" {
				t.Errorf("request %d: Retry-After = %q, want 7", i, ra)
			}
		} else if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("somewhat longer string", 8); got != "somewhat..." {
		t.Errorf("truncate long = %q", got)
	}
}
