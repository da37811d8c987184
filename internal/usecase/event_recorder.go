package usecase

import (
	"context"
	"fmt"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/metrics"
)

// Event backends.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// EventRecorder routes resolution events to the configured backend.
type EventRecorder struct {
	pub     drepo.EventPublisher
	store   drepo.EventStore
	metrics drepo.Metrics
	backend string
}

// NewEventRecorder builds a recorder. pub or store may be nil when their backend is not selected.
func NewEventRecorder(pub drepo.EventPublisher, store drepo.EventStore, m drepo.Metrics, backend string) *EventRecorder {
	if m == nil {
		m = metrics.Nop{}
	}
	if backend == "" {
		backend = BackendNone
	}
	return &EventRecorder{pub: pub, store: store, metrics: m, backend: backend}
}

// Backend returns the configured backend name.
func (r *EventRecorder) Backend() string { return r.backend }

// Process sends one event.
func (r *EventRecorder) Process(ctx context.Context, ev *models.ResolutionEvent) error {
	if ev == nil {
		return fmt.Errorf("event is nil")
	}
	start := time.Now()
	var err error

	switch r.backend {
	case BackendKafka:
		if r.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = r.pub.Publish(ctx, ev)
	case BackendClickHouse:
		if r.store == nil {
			return fmt.Errorf("clickhouse backend without store")
		}
		err = r.store.Store(ctx, ev)
	case BackendNone:
		return nil
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record_event")
		return fmt.Errorf("record event: %w", err)
	}
	r.metrics.RecordEventSent(r.backend)
	r.metrics.RecordLatency("record_event", time.Since(start).Seconds())
	return nil
}

// ProcessBatch sends several events at once.
func (r *EventRecorder) ProcessBatch(ctx context.Context, evs []*models.ResolutionEvent) error {
	if len(evs) == 0 {
		return nil
	}
	start := time.Now()
	var err error

	switch r.backend {
	case BackendKafka:
		if r.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = r.pub.PublishBatch(ctx, evs)
	case BackendClickHouse:
		if r.store == nil {
			return fmt.Errorf("clickhouse backend without store")
		}
		err = r.store.StoreBatch(ctx, evs)
	case BackendNone:
		return nil
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record_event_batch")
		return fmt.Errorf("record event batch: %w", err)
	}
	for range evs {
		r.metrics.RecordEventSent(r.backend)
	}
	r.metrics.RecordLatency("record_event_batch", time.Since(start).Seconds())
	return nil
}

// Close releases the publisher and the store.
func (r *EventRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}
