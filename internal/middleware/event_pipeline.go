package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinResolve/internal/domain/models"
	domrepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/metrics"
)

// Proc is the downstream the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, ev *models.ResolutionEvent) error
}

// EventPipeline decouples resolution from event delivery. Process validates and throttles,
// then queues without blocking; a background loop delivers with backoff and requeues
// on failure. Events are dropped when the queue is full.
type EventPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.ResolutionEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-outcome last accepted time
	now      func() time.Time
	sleep    func(time.Duration)
}

type PipelineOption func(*EventPipeline)

// WithMaxRPS caps accepted events per second per outcome. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the delivery queue size.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithPipelineClock replaces time.Now and time.Sleep.
func WithPipelineClock(now func() time.Time, sleep func(time.Duration)) PipelineOption {
	return func(p *EventPipeline) {
		if now != nil {
			p.now = now
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

func NewEventPipeline(proc Proc, m domrepo.Metrics, opts ...PipelineOption) *EventPipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	p := &EventPipeline{
		proc:     proc,
		metrics:  m,
		maxRPS:   50,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.ResolutionEvent, p.bufSize)
	return p
}

// Start launches background delivery.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case ev := <-p.bufCh:
				if err := p.proc.Process(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					p.sleep(backoff)
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop halts delivery and waits for the loop to exit. Queued events are discarded.
func (p *EventPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Pending returns the number of queued events.
func (p *EventPipeline) Pending() int { return len(p.bufCh) }

// Process queues ev for delivery. Throttled events are dropped silently.
func (p *EventPipeline) Process(_ context.Context, ev *models.ResolutionEvent) error {
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(string(ev.Outcome), p.now()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	select {
	case p.bufCh <- ev:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("pipeline buffer full")
	}
}

func validateEvent(ev *models.ResolutionEvent) error {
	if ev == nil {
		return fmt.Errorf("event nil")
	}
	if ev.ID == "" {
		return fmt.Errorf("event id empty")
	}
	if ev.CreatedAt.IsZero() {
		return fmt.Errorf("created_at missing")
	}
	switch ev.Outcome {
	case models.ResolutionAsset, models.ResolutionDisambiguation, models.ResolutionEmpty:
	default:
		return fmt.Errorf("unknown outcome %q", ev.Outcome)
	}
	if ev.ResultCount < 0 {
		return fmt.Errorf("negative result count")
	}
	return nil
}

func (p *EventPipeline) allow(key string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[key]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
