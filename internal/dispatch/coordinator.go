package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/heraldhq/herald/internal/channel"
	"github.com/heraldhq/herald/internal/logging"
	"github.com/heraldhq/herald/internal/metrics"
	"github.com/heraldhq/herald/internal/template"
	"github.com/heraldhq/herald/internal/tracing"
)

var (
	// ErrUnknownChannel is returned when a task names a channel no adapter
	// is registered for.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrNotCancellable is returned when Cancel finds the task past Pending.
	ErrNotCancellable = errors.New("task not cancellable")
	// ErrNotFound is returned when a task ID has no live entry.
	ErrNotFound = errors.New("task not found")
)

// DefaultMaxAttempts bounds delivery attempts per task unless configured.
const DefaultMaxAttempts = 5

// DefaultSendTimeout bounds one adapter call.
const DefaultSendTimeout = 15 * time.Second

// ChannelConfig sizes one channel's pool.
type ChannelConfig struct {
	Concurrency int           // worker count; the channel's concurrency budget
	RatePerSec  float64       // 0 disables rate limiting
	Burst       int           // limiter burst, min 1
	Backoff     BackoffPolicy // zero value falls back to DefaultBackoff
	SendTimeout time.Duration // per-attempt timeout, default DefaultSendTimeout
}

func (cc ChannelConfig) withDefaults() ChannelConfig {
	if cc.Concurrency < 1 {
		cc.Concurrency = 1
	}
	if cc.Backoff == (BackoffPolicy{}) {
		cc.Backoff = DefaultBackoff
	}
	if cc.SendTimeout <= 0 {
		cc.SendTimeout = DefaultSendTimeout
	}
	return cc
}

// Config holds coordinator-wide settings.
type Config struct {
	MaxAttempts int
	Channels    map[string]ChannelConfig
}

// DeadLetterSink receives tasks that ended Rejected or Exhausted.
type DeadLetterSink interface {
	Add(ctx context.Context, task Task, outcome Outcome) error
}

// OutcomeStore records terminal outcomes, exactly once per task life.
type OutcomeStore interface {
	Record(ctx context.Context, o Outcome) error
}

// Coordinator consumes delivery tasks and drives them to a terminal state.
// It owns the per-task lease table and all state transitions; a task is
// only ever touched by one worker at a time.
type Coordinator struct {
	cfg      Config
	adapters map[string]channel.Adapter
	renderer *template.Renderer
	sink     DeadLetterSink
	outcomes OutcomeStore
	log      *logging.Logger

	mu    sync.Mutex
	live  map[string]*Task // lease table: non-terminal tasks by ID
	seq   uint64
	pools map[string]*pool

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

func WithDeadLetterSink(s DeadLetterSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

func WithOutcomeStore(s OutcomeStore) Option {
	return func(c *Coordinator) { c.outcomes = s }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New builds a coordinator serving exactly the channels that have adapters.
// Channels without an entry in cfg.Channels get default pool settings.
func New(cfg Config, adapters []channel.Adapter, renderer *template.Renderer, opts ...Option) *Coordinator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	c := &Coordinator{
		cfg:      cfg,
		adapters: make(map[string]channel.Adapter, len(adapters)),
		renderer: renderer,
		log:      logging.New("herald-dispatch"),
		live:     make(map[string]*Task),
		pools:    make(map[string]*pool),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, a := range adapters {
		c.adapters[a.Name()] = a
		cc := cfg.Channels[a.Name()].withDefaults()
		c.pools[a.Name()] = newPool(a.Name(), cc, a, c)
	}
	return c
}

// Start launches the per-channel worker pools.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.runCtx, c.cancel = context.WithCancel(context.Background())
	for _, p := range c.pools {
		for i := 0; i < p.cfg.Concurrency; i++ {
			c.wg.Add(1)
			go func(p *pool) {
				defer c.wg.Done()
				p.run(c.runCtx)
			}(p)
		}
	}
}

// Stop signals the workers and waits for in-flight attempts to finish, up
// to the context deadline.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit hands a task to its channel pool. A submission whose task ID is
// already live is coalesced: the existing task is returned and no new work
// is created. Terminal task IDs may be resubmitted (replay).
func (c *Coordinator) Submit(t *Task) (*Task, bool, error) {
	p, ok := c.pools[t.Channel]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownChannel, t.Channel)
	}

	c.mu.Lock()
	if existing, ok := c.live[t.ID]; ok {
		c.mu.Unlock()
		metrics.TasksCoalescedTotal.Inc()
		c.log.Plain().WithTask(t.ID).WithChannel(t.Channel).Debug("duplicate submission coalesced")
		return existing, true, nil
	}
	c.seq++
	t.seq = c.seq
	c.live[t.ID] = t
	c.mu.Unlock()

	p.enqueue(t)
	return t, false, nil
}

// Cancel withdraws a task that has not started its first attempt. Once a
// task is InFlight the running attempt completes before anything else can
// happen to it, so only Pending tasks are cancellable.
func (c *Coordinator) Cancel(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.live[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if s := t.loadState(); s != StatePending {
		return fmt.Errorf("%w: %s is %s", ErrNotCancellable, taskID, s)
	}
	t.storeState(StateCancelled)
	delete(c.live, taskID)
	return nil
}

// Task returns a snapshot of a live task.
func (c *Coordinator) Task(taskID string) (Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.live[taskID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// LiveCount returns the number of non-terminal tasks, for health reporting.
func (c *Coordinator) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// attempt runs one delivery attempt. The caller (a pool worker) holds the
// task exclusively: it was popped from the ready set and is re-enqueued
// only by this method.
func (c *Coordinator) attempt(ctx context.Context, p *pool, t *Task) {
	c.mu.Lock()
	if t.loadState().Terminal() {
		// cancelled between pop and dispatch
		c.mu.Unlock()
		return
	}
	t.storeState(StateInFlight)
	t.Attempt++
	attempt := t.Attempt
	c.mu.Unlock()

	metrics.ChannelInFlight.WithLabelValues(p.name).Inc()
	defer metrics.ChannelInFlight.WithLabelValues(p.name).Dec()

	ctx = tracing.ExtractQueueHeaders(ctx, t.Event.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "dispatch.attempt",
		attribute.String("task_id", t.ID),
		attribute.String("event_id", t.Event.ID),
		attribute.String("event_type", t.Event.EventType),
		attribute.String("channel", t.Channel),
		attribute.Int("attempt", attempt),
		attribute.Bool("fast_path", t.FastPath),
	)
	defer span.End()

	msg, err := c.buildMessage(t)
	if err != nil {
		// TemplateNotFound / TemplateFieldMissing: not retryable
		tracing.SetSpanError(ctx, err)
		metrics.RecordDelivery(StateRejected.String(), p.name, 0)
		c.finish(ctx, t, StateRejected, "render: "+err.Error())
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	start := time.Now()
	res := p.adapter.Send(sendCtx, t.Destination, msg)
	cancel()
	latency := time.Since(start)

	span.SetAttributes(
		attribute.String("send.status", res.Status.String()),
		attribute.Int64("send.latency_ms", latency.Milliseconds()),
	)
	if res.Reason != "" {
		span.SetAttributes(attribute.String("send.reason", res.Reason))
	}

	switch res.Status {
	case channel.StatusSuccess:
		metrics.RecordDelivery(StateDelivered.String(), p.name, latency)
		c.finish(ctx, t, StateDelivered, "")

	case channel.StatusPermanent:
		metrics.RecordDelivery(StateRejected.String(), p.name, latency)
		c.finish(ctx, t, StateRejected, res.Reason)

	case channel.StatusRetryable:
		if attempt >= c.cfg.MaxAttempts {
			metrics.RecordDelivery(StateExhausted.String(), p.name, latency)
			c.finish(ctx, t, StateExhausted, res.Reason)
			return
		}
		delay := res.SuggestedDelay
		if delay <= 0 {
			delay = p.cfg.Backoff.Delay(attempt)
		}
		c.mu.Lock()
		t.storeState(StateAwaitingRetry)
		t.NextEligible = time.Now().Add(delay)
		t.LastError = res.Reason
		c.mu.Unlock()

		metrics.RecordRetry(p.name, res.Reason)
		c.log.WithContext(ctx).WithTask(t.ID).WithChannel(t.Channel).WithFields(map[string]any{
			"attempt": attempt,
			"delay":   delay.String(),
			"reason":  res.Reason,
		}).Info("delivery requeued")
		p.enqueue(t)
	}
}

// finish moves a task to a terminal state, records the outcome, and hands
// rejected/exhausted tasks to the dead-letter sink without delay.
func (c *Coordinator) finish(ctx context.Context, t *Task, state State, lastErr string) {
	c.mu.Lock()
	t.storeState(state)
	t.LastError = lastErr
	delete(c.live, t.ID)
	c.mu.Unlock()

	o := Outcome{
		TaskID:      t.ID,
		EventID:     t.Event.ID,
		EventType:   t.Event.EventType,
		Channel:     t.Channel,
		Destination: t.Destination,
		State:       state.String(),
		Attempts:    t.Attempt,
		LastError:   lastErr,
		CompletedAt: time.Now().UTC(),
	}
	if c.outcomes != nil {
		if err := c.outcomes.Record(ctx, o); err != nil {
			c.log.WithContext(ctx).WithTask(t.ID).WithError(err).Error("outcome record failed")
		}
	}

	entry := c.log.WithContext(ctx).WithTask(t.ID).WithEvent(t.Event.ID).WithChannel(t.Channel).
		WithField("attempts", t.Attempt)
	switch state {
	case StateDelivered:
		entry.Info("delivered")
	default:
		metrics.RecordDeadLetter(state.String())
		entry.WithField("reason", lastErr).Warnf("delivery %s", state)
		if c.sink != nil {
			if err := c.sink.Add(ctx, *t, o); err != nil {
				c.log.WithContext(ctx).WithTask(t.ID).WithError(err).Error("dead letter write failed")
			}
		}
	}
}
