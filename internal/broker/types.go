package broker

import (
	"context"

	"ldn/pkg/models"
)

// Producer publishes queue events and forwards raw notifications.
type Producer interface {
	Publish(ctx context.Context, topic string, event models.QueueEvent) error
	PublishRaw(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, event models.QueueEvent) error

// NopProducer drops everything. It stands in when no broker is configured.
type NopProducer struct{}

func (NopProducer) Publish(context.Context, string, models.QueueEvent) error {
	return nil
}

func (NopProducer) PublishRaw(context.Context, string, string, []byte) error {
	return nil
}

func (NopProducer) Close() error {
	return nil
}
