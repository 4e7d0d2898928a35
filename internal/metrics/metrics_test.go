package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustRegister() panicked: %v", r)
		}
	}()
	MustRegister(reg)

	// Record some values so metrics appear in Gather()
	RecordEventIngested("order.created", "normal")
	RecordDelivery("delivered", "chat", 120*time.Millisecond)
	RecordRetry("email", "http_503")
	RecordDeadLetter("exhausted")
	EventsUnroutedTotal.Inc()
	ChannelBacklog.WithLabelValues("sms").Set(4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Registry.Gather() error: %v", err)
	}

	got := make(map[string]bool)
	for _, mf := range families {
		got[mf.GetName()] = true
	}
	want := []string{
		"herald_events_ingested_total",
		"herald_events_unrouted_total",
		"herald_deliveries_total",
		"herald_delivery_latency_seconds",
		"herald_retries_total",
		"herald_dead_letters_total",
		"herald_channel_backlog",
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestCounterValues(t *testing.T) {
	// Metrics are package globals, so compare deltas rather than absolutes.
	before := testutil.ToFloat64(RetriesTotal.WithLabelValues("push", "timeout"))
	RecordRetry("push", "timeout")
	RecordRetry("push", "timeout")
	after := testutil.ToFloat64(RetriesTotal.WithLabelValues("push", "timeout"))

	if after-before != 2 {
		t.Errorf("retry counter delta = %v, want 2", after-before)
	}
}
