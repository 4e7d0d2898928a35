package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/heraldhq/herald/internal/channel"
	"github.com/heraldhq/herald/internal/metrics"
)

// poolTick bounds how long an idle worker sleeps before re-scanning its
// ready set. Wakes on enqueue make this a fallback, not the common path.
const poolTick = 250 * time.Millisecond

// taskHeap orders tasks by next-eligible time, then submission order.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if !h[i].NextEligible.Equal(h[j].NextEligible) {
		return h[i].NextEligible.Before(h[j].NextEligible)
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// pool is the per-channel scheduling unit: a bounded worker set, a rate
// limiter, and two ready heaps. Fast-path tasks drain before normal tasks
// but share the same workers, so priority never bypasses the concurrency
// budget.
type pool struct {
	name    string
	cfg     ChannelConfig
	adapter channel.Adapter
	limiter *rate.Limiter
	coord   *Coordinator

	mu     sync.Mutex
	fast   taskHeap
	normal taskHeap
	wake   chan struct{}
}

func newPool(name string, cfg ChannelConfig, adapter channel.Adapter, coord *Coordinator) *pool {
	p := &pool{
		name:    name,
		cfg:     cfg,
		adapter: adapter,
		coord:   coord,
		wake:    make(chan struct{}, 1),
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return p
}

// enqueue adds a task to the ready set and nudges a sleeping worker.
func (p *pool) enqueue(t *Task) {
	p.mu.Lock()
	if t.FastPath {
		heap.Push(&p.fast, t)
	} else {
		heap.Push(&p.normal, t)
	}
	backlog := len(p.fast) + len(p.normal)
	p.mu.Unlock()

	metrics.ChannelBacklog.WithLabelValues(p.name).Set(float64(backlog))
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// next blocks until an eligible task is available or the context ends.
// Fast-path tasks are preferred whenever one is eligible.
func (p *pool) next(ctx context.Context) *Task {
	for {
		now := time.Now()
		p.mu.Lock()
		t, wait := p.popEligible(now)
		backlog := len(p.fast) + len(p.normal)
		p.mu.Unlock()

		metrics.ChannelBacklog.WithLabelValues(p.name).Set(float64(backlog))
		if t != nil {
			return t
		}

		if wait <= 0 || wait > poolTick {
			wait = poolTick
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// popEligible returns the next runnable task, or how long until one becomes
// eligible (zero when both heaps are empty). Caller holds the pool lock.
func (p *pool) popEligible(now time.Time) (*Task, time.Duration) {
	var wait time.Duration
	for _, h := range []*taskHeap{&p.fast, &p.normal} {
		for h.Len() > 0 {
			top := (*h)[0]
			if top.loadState().Terminal() {
				// cancelled while queued; lazy removal
				heap.Pop(h)
				continue
			}
			if top.NextEligible.After(now) {
				if d := top.NextEligible.Sub(now); wait == 0 || d < wait {
					wait = d
				}
				break
			}
			return heap.Pop(h).(*Task), 0
		}
	}
	return nil, wait
}

// run is one worker loop. The pool starts cfg.Concurrency of these; their
// count is the channel's concurrency budget.
func (p *pool) run(ctx context.Context) {
	for {
		t := p.next(ctx)
		if t == nil {
			return
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				// shutting down; put the task back for the next start
				p.enqueue(t)
				return
			}
		}
		p.coord.attempt(ctx, p, t)
	}
}
