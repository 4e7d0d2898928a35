package template

import (
	"errors"
	"testing"
)

func testRenderer() *Renderer {
	return NewRenderer(map[string]Template{
		"order-created": {
			Name: "order-created",
			Variants: map[string]Definition{
				"default": {Body: "Order {{orderId}} created"},
				"email":   {Subject: "Order {{orderId}}", Body: "Order {{orderId}} was created by {{customer?}}."},
			},
		},
		"alert": {
			Name: "alert",
			Variants: map[string]Definition{
				"default": {Body: "{{message}}"},
			},
		},
	})
}

func TestRender(t *testing.T) {
	r := testRenderer()

	tests := []struct {
		name        string
		template    string
		payload     map[string]any
		channel     string
		wantSubject string
		wantBody    string
		wantErr     error
	}{
		{
			name:     "default variant",
			template: "order-created",
			payload:  map[string]any{"orderId": "12345"},
			channel:  "chat",
			wantBody: "Order 12345 created",
		},
		{
			name:        "channel variant with optional field present",
			template:    "order-created",
			payload:     map[string]any{"orderId": "12345", "customer": "ada"},
			channel:     "email",
			wantSubject: "Order 12345",
			wantBody:    "Order 12345 was created by ada.",
		},
		{
			name:        "optional field missing renders empty",
			template:    "order-created",
			payload:     map[string]any{"orderId": "12345"},
			channel:     "email",
			wantSubject: "Order 12345",
			wantBody:    "Order 12345 was created by .",
		},
		{
			name:     "required field missing",
			template: "order-created",
			payload:  map[string]any{},
			channel:  "chat",
			wantErr:  ErrTemplateFieldMissing,
		},
		{
			name:     "unknown template",
			template: "nope",
			payload:  map[string]any{},
			channel:  "chat",
			wantErr:  ErrTemplateNotFound,
		},
		{
			name:     "numeric payload value",
			template: "alert",
			payload:  map[string]any{"message": 42},
			channel:  "sms",
			wantBody: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.template, tt.payload, tt.channel)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Render() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() unexpected error: %v", err)
			}
			if got.Subject != tt.wantSubject {
				t.Errorf("Render() subject = %q, want %q", got.Subject, tt.wantSubject)
			}
			if got.Body != tt.wantBody {
				t.Errorf("Render() body = %q, want %q", got.Body, tt.wantBody)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	r := NewRenderer(map[string]Template{
		"dump": {
			Name: "dump",
			Variants: map[string]Definition{
				"default": {Body: "details: {{detail}}"},
			},
		},
	})
	payload := map[string]any{
		"detail": map[string]any{"zeta": 1, "alpha": "x", "mid": true},
	}

	first, err := r.Render("dump", payload, "chat")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := r.Render("dump", payload, "chat")
		if err != nil {
			t.Fatalf("Render() error on iteration %d: %v", i, err)
		}
		if got.Body != first.Body {
			t.Fatalf("Render() not deterministic: %q vs %q", got.Body, first.Body)
		}
	}
	if first.Body != "details: alpha=x mid=true zeta=1" {
		t.Errorf("Render() map formatting = %q", first.Body)
	}
}
