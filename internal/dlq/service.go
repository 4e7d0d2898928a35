package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heraldhq/herald/internal/dispatch"
	"github.com/heraldhq/herald/internal/logging"
	"github.com/heraldhq/herald/internal/metrics"
)

// DefaultTopic is the queue topic dead letters are mirrored to.
const DefaultTopic = "herald_dead_letters"

// Publisher publishes raw messages to a queue topic. *nsq.Producer
// satisfies it.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Submitter re-injects a task into the coordinator. *dispatch.Coordinator
// satisfies it.
type Submitter interface {
	Submit(t *dispatch.Task) (*dispatch.Task, bool, error)
}

// Service implements the coordinator's dead-letter sink and the operator
// surface on top of it: list, inspect, replay.
type Service struct {
	store     Store
	publisher Publisher
	topic     string
	submit    Submitter
	log       *logging.Logger
}

type Option func(*Service)

// WithPublisher mirrors every letter to a queue topic for external
// consumers. An empty topic selects DefaultTopic.
func WithPublisher(p Publisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithSubmitter enables Replay.
func WithSubmitter(sub Submitter) Option {
	return func(s *Service) { s.submit = sub }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		topic: DefaultTopic,
		log:   logging.New("herald-dlq"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add captures a terminally failed task. Store write failures are returned;
// topic publish failures are logged only, the store is the source of truth.
func (s *Service) Add(ctx context.Context, task dispatch.Task, outcome dispatch.Outcome) error {
	l := NewLetter(task, outcome)
	if err := s.store.Add(ctx, l); err != nil {
		return fmt.Errorf("store dead letter: %w", err)
	}
	s.log.WithContext(ctx).WithTask(task.ID).WithChannel(task.Channel).
		WithField("reason", l.Reason).Info("dead letter captured")

	if s.publisher != nil {
		body, err := json.Marshal(l)
		if err != nil {
			s.log.WithContext(ctx).WithTask(task.ID).WithError(err).Error("dead letter encode failed")
			return nil
		}
		if err := s.publisher.Publish(s.topic, body); err != nil {
			s.log.WithContext(ctx).WithTask(task.ID).WithError(err).Error("dead letter publish failed")
		}
	}
	return nil
}

// Get returns one letter by task ID.
func (s *Service) Get(ctx context.Context, taskID string) (Letter, error) {
	return s.store.Get(ctx, taskID)
}

// List returns letters matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]Letter, error) {
	return s.store.List(ctx, f)
}

// Replay re-submits a dead-lettered task as a fresh delivery: attempt count
// reset, state Pending, eligible immediately. The letter stays in the store
// with its replay time marked; a task that fails again overwrites it.
func (s *Service) Replay(ctx context.Context, taskID string) (*dispatch.Task, error) {
	if s.submit == nil {
		return nil, fmt.Errorf("replay not available: no coordinator attached")
	}
	l, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	t := dispatch.NewTask(l.Task.Event, l.Task.Channel, l.Task.Destination, l.Task.Template)
	submitted, coalesced, err := s.submit.Submit(t)
	if err != nil {
		return nil, fmt.Errorf("resubmit %s: %w", taskID, err)
	}
	if coalesced {
		return submitted, fmt.Errorf("task %s is already live", taskID)
	}

	metrics.ReplaysTotal.Inc()
	if err := s.store.MarkReplayed(ctx, taskID, time.Now()); err != nil {
		s.log.WithContext(ctx).WithTask(taskID).WithError(err).Error("mark replayed failed")
	}
	s.log.WithContext(ctx).WithTask(taskID).WithChannel(t.Channel).Info("dead letter replayed")
	return submitted, nil
}
