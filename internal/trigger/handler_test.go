package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/logger"
	"ldn/pkg/models"
)

type countingTriggerer struct {
	calls int
}

func (c *countingTriggerer) Trigger() {
	c.calls++
}

func TestHandler_HandleQueueEvent(t *testing.T) {
	tests := []struct {
		name        string
		eventType   string
		status      models.QueueStatus
		wantTrigger bool
	}{
		{name: "ingested queued", eventType: models.EventMessageIngested, status: models.StatusQueued, wantTrigger: true},
		{name: "requeued", eventType: models.EventMessageRequeued, status: models.StatusQueued, wantTrigger: true},
		{name: "ingested untrusted", eventType: models.EventMessageIngested, status: models.StatusUntrusted},
		{name: "processed", eventType: models.EventMessageProcessed, status: models.StatusProcessed},
		{name: "origin update", eventType: models.EventOriginUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triggerer := &countingTriggerer{}
			h := NewHandler(triggerer, logger.NopLogger())

			err := h.HandleQueueEvent(context.Background(), models.QueueEvent{
				EventType: tt.eventType,
				MessageID: "urn:uuid:1",
				Status:    tt.status,
			})
			require.NoError(t, err)

			want := 0
			if tt.wantTrigger {
				want = 1
			}
			assert.Equal(t, want, triggerer.calls)
		})
	}
}

func TestHandler_CustomEventTypes(t *testing.T) {
	triggerer := &countingTriggerer{}
	h := NewHandler(triggerer, logger.NopLogger(), models.EventMessageRequeued)

	require.NoError(t, h.HandleQueueEvent(context.Background(), models.QueueEvent{
		EventType: models.EventMessageIngested,
		Status:    models.StatusQueued,
	}))
	require.NoError(t, h.HandleQueueEvent(context.Background(), models.QueueEvent{
		EventType: models.EventMessageRequeued,
		Status:    models.StatusQueued,
	}))
	assert.Equal(t, 1, triggerer.calls)
}
