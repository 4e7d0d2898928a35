// fake-receiver is a local stand-in for channel endpoints: it accepts any
// webhook-shaped POST and can simulate transient failures, rate limiting
// with Retry-After, and slow responses. Useful for exercising the retry
// and dead-letter paths end to end.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/heraldhq/herald/internal/config"
)

type receiver struct {
	cfg config.FakeReceiver

	mu       sync.Mutex
	reqCount int
}

func main() {
	cfg := config.FromEnv().FakeReceiver
	rcv := &receiver{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("/hook", rcv.handleHook)
	mux.HandleFunc("/", rcv.handleHook) // Slack/Teams-style webhook paths

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	log.Printf("fake-receiver listening on %s (fail_first_n=%d rate_limit_every_n=%d delay_ms=%d)",
		cfg.Port, cfg.FailFirstN, cfg.RateLimitEveryN, cfg.ResponseDelayMS)
	log.Fatal(srv.ListenAndServe())
}

func (rcv *receiver) handleHook(w http.ResponseWriter, r *http.Request) {
	rcv.mu.Lock()
	rcv.reqCount++
	n := rcv.reqCount
	rcv.mu.Unlock()

	b, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if rcv.cfg.ResponseDelayMS > 0 {
		time.Sleep(time.Duration(rcv.cfg.ResponseDelayMS) * time.Millisecond)
	}

	// Simulate flakiness: first N requests answer 500
	if n <= rcv.cfg.FailFirstN {
		log.Printf("FAILING (%d/%d) %s body=%s", n, rcv.cfg.FailFirstN, r.URL.Path, truncate(string(b), 160))
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	// Simulate rate limiting: every Nth request answers 429 with Retry-After
	if rcv.cfg.RateLimitEveryN > 0 && n%rcv.cfg.RateLimitEveryN == 0 {
		log.Printf("RATE LIMITING (#%d) %s retry_after=%ds", n, r.URL.Path, rcv.cfg.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(rcv.cfg.RetryAfter))
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	log.Printf("fake-receiver OK %s headers=%d body=%q", r.URL.Path, len(r.Header), truncate(string(b), 160))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`ok`))
}

// truncate truncates a string to the specified length and adds an ellipsis if truncated
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
