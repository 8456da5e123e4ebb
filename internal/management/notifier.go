package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ldn/internal/broker"
	"ldn/pkg/models"
)

type OriginEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewOriginEventProducer(producer broker.Producer, topic string) *OriginEventProducer {
	return &OriginEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *OriginEventProducer) PublishOriginEvent(ctx context.Context, action string, origin *models.OriginService, changedBy string) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	event := OriginEvent{
		EventType: models.EventOriginUpdated,
		OriginID:  origin.ID,
		InboxURL:  origin.InboxURL,
		Action:    action,
		Enabled:   origin.Enabled,
		ChangedBy: changedBy,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal origin event: %w", err)
	}
	return p.producer.PublishRaw(ctx, p.topic, origin.ID, body)
}
