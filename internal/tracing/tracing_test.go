package tracing

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestGetTraceIDWithoutSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("GetTraceID() = %q, want empty without an active span", id)
	}
}

func TestInjectQueueHeadersWithoutSpan(t *testing.T) {
	headers := InjectQueueHeaders(context.Background())
	if headers == nil {
		t.Fatal("InjectQueueHeaders() returned nil map")
	}
	// No active span means nothing to propagate; the map must still be usable.
	ctx := ExtractQueueHeaders(context.Background(), headers)
	if ctx == nil {
		t.Fatal("ExtractQueueHeaders() returned nil context")
	}
}

func TestExtractQueueHeadersRoundTrip(t *testing.T) {
	// Propagation must work without InitTracing: producers like the
	// scheduler publish headers before any tracer exists.
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	headers := map[string]string{
		"traceparent": "00-" + traceID + "-00f067aa0ba902b7-01",
	}
	ctx := ExtractQueueHeaders(context.Background(), headers)
	if got := GetTraceID(ctx); got != traceID {
		t.Fatalf("GetTraceID() after extract = %q, want %q", got, traceID)
	}

	out := InjectQueueHeaders(ctx)
	if !strings.Contains(out["traceparent"], traceID) {
		t.Errorf("re-injected traceparent = %q, want trace ID %s", out["traceparent"], traceID)
	}
}

func TestGetOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{"default", "", "localhost:4318"},
		{"plain host port", "collector:4318", "collector:4318"},
		{"strips http scheme", "http://collector:4318", "collector:4318"},
		{"strips https scheme", "https://collector:4318", "collector:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.env)
			} else {
				os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
			}
			if got := getOTLPEndpoint(); got != tt.want {
				t.Errorf("getOTLPEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}
