package trigger

import (
	"context"

	"ldn/internal/logger"
	"ldn/pkg/models"
)

// Triggerer requests an immediate drain. processor.Scheduler implements it.
type Triggerer interface {
	Trigger()
}

// Handler turns queue events from the broker into drain requests so a worker
// picks up new work before its next tick.
type Handler struct {
	eventTypes map[string]struct{}
	triggerer  Triggerer
	logger     logger.Logger
}

// NewHandler reacts to the given event types, or to message.ingested and
// message.requeued when none are given.
func NewHandler(triggerer Triggerer, log logger.Logger, eventTypes ...string) *Handler {
	if len(eventTypes) == 0 {
		eventTypes = []string{models.EventMessageIngested, models.EventMessageRequeued}
	}
	set := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
	return &Handler{
		eventTypes: set,
		triggerer:  triggerer,
		logger:     log,
	}
}

// HandleQueueEvent never fails: an event that does not announce drainable
// work is ignored.
func (h *Handler) HandleQueueEvent(ctx context.Context, event models.QueueEvent) error {
	if _, ok := h.eventTypes[event.EventType]; !ok {
		return nil
	}
	if event.Status != models.StatusQueued {
		h.logger.DebugwCtx(ctx, "Event does not make work drainable",
			"event_type", event.EventType,
			"message_id", event.MessageID,
			"status", event.Status,
		)
		return nil
	}

	h.logger.DebugwCtx(ctx, "Drain triggered by event",
		"event_type", event.EventType,
		"message_id", event.MessageID,
	)
	h.triggerer.Trigger()
	return nil
}
