package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heraldhq/herald/internal/channel"
	"github.com/heraldhq/herald/internal/config"
	"github.com/heraldhq/herald/internal/db"
	"github.com/heraldhq/herald/internal/dispatch"
	"github.com/heraldhq/herald/internal/dlq"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/health"
	"github.com/heraldhq/herald/internal/logging"
	"github.com/heraldhq/herald/internal/metrics"
	"github.com/heraldhq/herald/internal/route"
	"github.com/heraldhq/herald/internal/template"
	"github.com/heraldhq/herald/internal/tracing"
)

// internalPrefix marks events the engine emits about itself. They are routed
// like any other event but never trigger another error notification.
const internalPrefix = "herald."

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("herald-engine")

	shutdown, err := tracing.InitTracing(ctx, "herald-engine")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	file, err := config.LoadFile(cfg.Engine.ConfigFile)
	if err != nil {
		logger.Plain().WithError(err).Fatal("config load failed")
	}

	pool, err := db.Connect(ctx, cfg.DSN(), cfg.DB.MaxConns)
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	outcomes := db.NewPGOutcomeStore(pool)
	if err := outcomes.EnsureSchema(ctx); err != nil {
		logger.Plain().WithError(err).Fatal("outcome schema failed")
	}
	letters := dlq.NewPGStore(pool)
	if err := letters.EnsureSchema(ctx); err != nil {
		logger.Plain().WithError(err).Fatal("dead letter schema failed")
	}

	adapters, err := buildAdapters(file, cfg.Adapters)
	if err != nil {
		logger.Plain().WithError(err).Fatal("adapter setup failed")
	}

	var dlqOpts []dlq.Option
	if cfg.NSQ.PublishDLQ {
		producer, err := nsq.NewProducer(cfg.NSQ.NsqdTCPAddr, nsq.NewConfig())
		if err != nil {
			logger.Plain().WithError(err).Fatal("nsq producer for dead letters failed")
		}
		defer producer.Stop()
		dlqOpts = append(dlqOpts, dlq.WithPublisher(producer, cfg.NSQ.DeadLetterTopic))
	}

	eng := &engine{log: logger}
	var sink dispatch.DeadLetterSink = dlq.NewService(letters, dlqOpts...)
	if cfg.Engine.ErrorEvents {
		// failed deliveries turn into herald.error events, routed like any other
		sink = &notifyingSink{next: sink, eng: eng}
	}

	renderer := template.NewRenderer(file.TemplateSet())
	coord := dispatch.New(file.DispatchConfig(cfg.Engine), adapters, renderer,
		dispatch.WithDeadLetterSink(sink),
		dispatch.WithOutcomeStore(outcomes),
		dispatch.WithLogger(logger),
	)
	eng.router = route.NewRouter(file.RouteTable())
	eng.coord = coord
	coord.Start()

	// Prom metrics
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool, coord))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.Engine.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("engine HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("engine HTTP server failed")
		}
	}()

	// NSQ consumer
	conf := nsq.NewConfig()
	conf.MaxInFlight = 1000
	consumer, err := nsq.NewConsumer(cfg.NSQ.EventsTopic, cfg.NSQ.EngineChannel, conf)
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq consumer creation failed")
	}
	consumer.AddHandler(nsq.HandlerFunc(eng.handle))

	// Connecting directly to nsqd forces channel creation instead of waiting
	// for the first publish
	if err := consumer.ConnectToNSQD(cfg.NSQ.NsqdTCPAddr); err != nil {
		logger.Plain().WithError(err).Fatal("connect to nsqd failed")
	}
	if err := consumer.ConnectToNSQLookupd(cfg.NSQ.LookupHTTPAddr); err != nil {
		logger.Plain().WithError(err).Fatal("connect to lookupd failed")
	}

	logger.Plain().Info("engine started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down engine")
	consumer.Stop()
	<-consumer.StopChan

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownGrace)
	defer cancel()
	if err := coord.Stop(stopCtx); err != nil {
		logger.Plain().WithError(err).Warn("coordinator stop timed out")
	}
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("engine stopped")
}

// engine ties the NSQ handler to routing and dispatch.
type engine struct {
	router *route.Router
	coord  *dispatch.Coordinator
	log    *logging.Logger
}

// handle processes one inbound event message. The message is always
// finished: delivery failures are the coordinator's concern, not the
// queue's, and bad payloads must not be redelivered.
func (g *engine) handle(m *nsq.Message) error {
	var e event.Event
	if err := json.Unmarshal(m.Body, &e); err != nil {
		g.log.Plain().WithError(err).Error("bad event payload")
		metrics.EventsInvalidTotal.Inc()
		return nil
	}

	ctx := tracing.ExtractQueueHeaders(context.Background(), e.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "engine.ingest",
		attribute.String("event_type", e.EventType),
		attribute.String("priority", string(e.Priority)),
	)
	defer span.End()

	res, err := g.router.Route(e)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		g.log.WithContext(ctx).WithEvent(e.ID).WithError(err).Error("event rejected")
		metrics.EventsInvalidTotal.Inc()
		return nil
	}
	metrics.RecordEventIngested(e.EventType, string(e.Priority))

	if res.Unrouted {
		metrics.EventsUnroutedTotal.Inc()
		g.log.WithContext(ctx).WithEvent(e.ID).
			WithField("event_type", e.EventType).Debug("event matched no route")
		return nil
	}

	for _, t := range res.Tasks {
		if _, coalesced, err := g.coord.Submit(t); err != nil {
			tracing.SetSpanError(ctx, err)
			g.log.WithContext(ctx).WithTask(t.ID).WithChannel(t.Channel).WithError(err).Error("submit failed")
		} else if !coalesced {
			g.log.WithContext(ctx).WithTask(t.ID).WithEvent(t.Event.ID).WithChannel(t.Channel).
				WithField("rule", res.Rule).Info("task submitted")
		}
	}
	return nil
}

// notifyError routes a herald.error event describing a failed delivery.
// Failures of the notification itself are logged and dropped; they never
// cascade.
func (g *engine) notifyError(ctx context.Context, t dispatch.Task, o dispatch.Outcome) {
	if strings.HasPrefix(t.Event.EventType, internalPrefix) {
		return
	}
	e := event.Event{
		EventType: internalPrefix + "error",
		Source:    "herald-engine",
		Priority:  event.PriorityHigh,
		Payload: map[string]any{
			"message":           fmt.Sprintf("delivery %s on %s: %s", o.State, t.Channel, o.LastError),
			"failed_event_type": t.Event.EventType,
			"failed_event_id":   t.Event.ID,
			"channel":           t.Channel,
			"attempts":          o.Attempts,
		},
	}
	res, err := g.router.Route(e)
	if err != nil || res.Unrouted {
		return
	}
	for _, nt := range res.Tasks {
		if _, _, err := g.coord.Submit(nt); err != nil {
			g.log.WithContext(ctx).WithTask(nt.ID).WithError(err).Error("error notification submit failed")
		}
	}
}

// notifyingSink decorates the dead-letter sink with error self-notification.
type notifyingSink struct {
	next dispatch.DeadLetterSink
	eng  *engine
}

func (s *notifyingSink) Add(ctx context.Context, t dispatch.Task, o dispatch.Outcome) error {
	err := s.next.Add(ctx, t, o)
	s.eng.notifyError(ctx, t, o)
	return err
}

// buildAdapters constructs one adapter per declared channel. Channels that
// need credentials fail fast when the environment lacks them.
func buildAdapters(file *config.File, creds config.Adapters) ([]channel.Adapter, error) {
	var out []channel.Adapter
	for name := range file.Channels {
		switch name {
		case channel.Chat:
			out = append(out, channel.NewSlackAdapter(nil, "Herald"))
		case channel.Teams:
			out = append(out, channel.NewTeamsAdapter(nil))
		case channel.Email:
			if creds.EmailAPIBase == "" || creds.EmailAPIKey == "" {
				return nil, fmt.Errorf("channel %q declared but EMAIL_API_BASE/EMAIL_API_KEY unset", name)
			}
			out = append(out, channel.NewEmailAdapter(nil, creds.EmailAPIBase, creds.EmailAPIKey, creds.EmailFrom))
		case channel.SMS:
			if creds.SMSGatewayURL == "" || creds.SMSAccountID == "" {
				return nil, fmt.Errorf("channel %q declared but SMS gateway env unset", name)
			}
			out = append(out, channel.NewSMSAdapter(nil, creds.SMSGatewayURL, creds.SMSAccountID, creds.SMSAuthToken, creds.SMSFrom))
		case channel.Push:
			if creds.PushGateway == "" || creds.PushSecret == "" {
				return nil, fmt.Errorf("channel %q declared but PUSH gateway env unset", name)
			}
			out = append(out, channel.NewPushAdapter(nil, creds.PushGateway, creds.PushIssuer, []byte(creds.PushSecret)))
		default:
			return nil, fmt.Errorf("no adapter for channel %q", name)
		}
	}
	return out, nil
}
