package bootstrap

import (
	"context"
	"fmt"

	"ldn/internal/broker"
	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
	// Events is nil when no broker is configured.
	Events *broker.EventPublisher
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// EventsTopic is the topic queue lifecycle events are published to.
func (b *Base) EventsTopic() string {
	if b.Config.Broker.Kafka.EventsTopic != "" {
		return b.Config.Broker.Kafka.EventsTopic
	}
	return constants.DefaultEventsTopic
}

// InitBroker creates the producer and, when consume is set, a consumer for
// the events topic. With no broker configured the producer is a no-op and no
// consumer is created.
func (b *Base) InitBroker(serviceName string, consume bool) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer

	if b.Config.Broker.Type == "" {
		b.Logger.Warn("No broker configured, queue events are disabled")
		return nil
	}

	b.Events = broker.NewEventPublisher(producer, b.EventsTopic(), b.Logger.Named("events"))

	if !consume {
		return nil
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Consumer = consumer
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
