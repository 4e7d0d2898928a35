package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/heraldhq/herald/internal/channel"
	"github.com/heraldhq/herald/internal/config"
	"github.com/heraldhq/herald/internal/dispatch"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/logging"
	"github.com/heraldhq/herald/internal/route"
	"github.com/heraldhq/herald/internal/template"
)

func TestBuildAdapters(t *testing.T) {
	file := &config.File{Channels: map[string]config.ChannelFile{
		"chat":  {Destination: "https://hooks.example.com/x"},
		"teams": {Destination: "https://teams.example.com/x"},
	}}

	adapters, err := buildAdapters(file, config.Adapters{})
	if err != nil {
		t.Fatalf("buildAdapters: %v", err)
	}
	if len(adapters) != 2 {
		t.Fatalf("got %d adapters, want 2", len(adapters))
	}

	file.Channels["email"] = config.ChannelFile{Destination: "ops@example.com"}
	if _, err := buildAdapters(file, config.Adapters{}); err == nil {
		t.Fatal("email without credentials must fail")
	}
	creds := config.Adapters{EmailAPIBase: "https://mail.example.com", EmailAPIKey: "k", EmailFrom: "herald@example.com"}
	if _, err := buildAdapters(file, creds); err != nil {
		t.Fatalf("buildAdapters with email creds: %v", err)
	}

	file.Channels["fax"] = config.ChannelFile{Destination: "x"}
	if _, err := buildAdapters(file, creds); err == nil || !strings.Contains(err.Error(), "fax") {
		t.Fatalf("unknown channel error = %v", err)
	}
}

type dropAdapter struct{ name string }

func (a dropAdapter) Name() string { return a.name }
func (a dropAdapter) Send(context.Context, string, channel.Message) channel.SendResult {
	return channel.Success()
}
func (a dropAdapter) HealthCheck(context.Context) error { return nil }

func testEngine(t *testing.T) *engine {
	t.Helper()
	renderer := template.NewRenderer(map[string]template.Template{
		"note": {Name: "note", Variants: map[string]template.Definition{
			"default": {Body: "{{message}}"},
		}},
	})
	coord := dispatch.New(dispatch.Config{}, []channel.Adapter{dropAdapter{name: channel.Chat}}, renderer)
	coord.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = coord.Stop(ctx)
	})

	table := route.Table{
		Rules: []route.Rule{{Name: "all-orders", Prefix: "order.", Channels: []string{channel.Chat}, Template: "note"}},
		Channels: map[string]route.Channel{
			channel.Chat: {Name: channel.Chat, Destination: "https://hooks.example.com/x", Template: "note"},
		},
	}
	return &engine{router: route.NewRouter(table), coord: coord, log: logging.New("test")}
}

func nsqMessage(t *testing.T, body any) *nsq.Message {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return nsq.NewMessage(nsq.MessageID{}, raw)
}

func TestHandleBadPayload(t *testing.T) {
	eng := testEngine(t)
	m := nsq.NewMessage(nsq.MessageID{}, []byte("not json"))
	if err := eng.handle(m); err != nil {
		t.Fatalf("bad payload must be finished, not errored: %v", err)
	}
}

func TestHandleRoutesAndSubmits(t *testing.T) {
	eng := testEngine(t)
	m := nsqMessage(t, event.Event{
		EventType: "order.created",
		Payload:   map[string]any{"message": "hi", "order_id": "o-1"},
	})
	if err := eng.handle(m); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestHandleUnrouted(t *testing.T) {
	eng := testEngine(t)
	m := nsqMessage(t, event.Event{EventType: "cache.evicted"})
	if err := eng.handle(m); err != nil {
		t.Fatalf("unrouted event must not error: %v", err)
	}
	if eng.coord.LiveCount() != 0 {
		t.Errorf("unrouted event produced tasks: %d live", eng.coord.LiveCount())
	}
}
