package broker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ldn/internal/logger"
	"ldn/pkg/models"
)

// EventPublisher announces queue transitions on the broker. Publishing is
// best effort: a failure is logged and never changes the transition.
type EventPublisher struct {
	producer Producer
	topic    string
	logger   logger.Logger
}

func NewEventPublisher(producer Producer, topic string, log logger.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic, logger: log}
}

// Publish is safe to call on a nil publisher.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, msg *models.Message, handler, reason string) {
	if p == nil || p.producer == nil || eventType == "" {
		return
	}

	event := models.QueueEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		MessageID: msg.ID,
		Status:    msg.QueueStatus,
		Attempts:  msg.QueueAttempts,
		Handler:   handler,
		Timestamp: time.Now().UTC(),
		Metadata:  models.EventMetadata{Source: "ldn", Reason: reason},
	}

	if err := p.producer.Publish(ctx, p.topic, event); err != nil {
		p.logger.WarnwCtx(ctx, "Failed to publish queue event",
			"event_type", eventType,
			"message_id", msg.ID,
			"topic", p.topic,
			"error", err,
		)
	}
}
