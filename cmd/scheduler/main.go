// The scheduler publishes configured events on cron expressions, feeding
// the same events topic the engine consumes. It shares the engine's config
// file so schedules are validated against the declared channels.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"
	"github.com/robfig/cron/v3"

	"github.com/heraldhq/herald/internal/config"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/logging"
	"github.com/heraldhq/herald/internal/tracing"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("herald-scheduler")

	shutdown, err := tracing.InitTracing(ctx, "herald-scheduler")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	file, err := config.LoadFile(cfg.Engine.ConfigFile)
	if err != nil {
		logger.Plain().WithError(err).Fatal("config load failed")
	}
	if len(file.Schedules) == 0 {
		logger.Plain().Fatal("no schedules configured")
	}

	producer, err := nsq.NewProducer(cfg.NSQ.NsqdTCPAddr, nsq.NewConfig())
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq producer creation failed")
	}
	defer producer.Stop()

	c := cron.New()
	for _, s := range file.Schedules {
		if s.Disabled {
			logger.Plain().WithField("schedule", s.Name).Info("schedule disabled, skipping")
			continue
		}
		s := s
		id, err := c.AddFunc(s.Cron, func() {
			fire(producer, cfg.NSQ.EventsTopic, s, logger)
		})
		if err != nil {
			logger.Plain().WithField("schedule", s.Name).WithError(err).Fatal("bad cron expression")
		}
		logger.Plain().WithFields(map[string]any{
			"schedule": s.Name,
			"cron":     s.Cron,
			"entry":    int(id),
		}).Info("schedule registered")
	}

	c.Start()
	logger.Plain().Info("scheduler started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Plain().Info("scheduler stopped")
}

// fire publishes one occurrence of a scheduled event.
func fire(producer *nsq.Producer, topic string, s config.ScheduleFile, logger *logging.Logger) {
	e := buildEvent(s, time.Now().UTC())
	body, err := json.Marshal(e)
	if err != nil {
		logger.Plain().WithField("schedule", s.Name).WithError(err).Error("event marshal failed")
		return
	}
	if err := producer.Publish(topic, body); err != nil {
		logger.Plain().WithField("schedule", s.Name).WithError(err).Error("event publish failed")
		return
	}
	logger.Plain().WithEvent(e.ID).WithFields(map[string]any{
		"schedule":   s.Name,
		"event_type": e.EventType,
	}).Info("scheduled event published")
}

// buildEvent materializes one firing. Each firing gets a fresh ID and a
// fired_at payload field so repeated occurrences never coalesce with each
// other.
func buildEvent(s config.ScheduleFile, at time.Time) event.Event {
	payload := make(map[string]any, len(s.Event.Payload)+2)
	for k, v := range s.Event.Payload {
		payload[k] = v
	}
	payload["schedule"] = s.Name
	payload["fired_at"] = at.Format(time.RFC3339)

	return event.Event{
		ID:         uuid.NewString(),
		EventType:  s.Event.EventType,
		Source:     "herald-scheduler",
		Priority:   event.Priority(s.Event.Priority),
		Payload:    payload,
		Channels:   s.Event.Channels,
		Template:   s.Event.Template,
		OccurredAt: at.Format(time.RFC3339Nano),
	}
}
