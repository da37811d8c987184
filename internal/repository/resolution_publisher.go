package repository

import (
	"context"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	pkgkafka "FinResolve/pkg/kafka"
)

type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaEventPublisher ships resolution events keyed by their top symbol.
type KafkaEventPublisher struct {
	producer messageProducer
	topic    string
}

var _ drepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer messageProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// eventKey keeps events about one symbol on one partition; empty results spread by id.
func eventKey(ev *models.ResolutionEvent) []byte {
	if ev.TopSymbol != "" {
		return []byte(ev.TopSymbol)
	}
	return []byte(ev.ID)
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev *models.ResolutionEvent) error {
	return p.producer.Publish(ctx, p.topic, eventKey(ev), ev)
}

func (p *KafkaEventPublisher) PublishBatch(ctx context.Context, evs []*models.ResolutionEvent) error {
	msgs := make([]pkgkafka.Message, 0, len(evs))
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: eventKey(ev), Value: ev})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaLogPublisher adapts the producer to the log collector's Publisher.
type KafkaLogPublisher struct {
	producer messageProducer
}

func NewKafkaLogPublisher(producer messageProducer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
