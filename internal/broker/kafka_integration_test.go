//go:build integration

package broker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	"ldn/internal/config"
	"ldn/internal/logger"
	"ldn/pkg/models"
)

func TestKafka_PublishConsumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("ldn-test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	cfg := config.KafkaConfig{Brokers: brokers, GroupID: "ldn-test-worker"}
	producer := NewKafkaProducer(cfg, logger.NopLogger())
	t.Cleanup(func() { _ = producer.Close() })

	const topic = "ldn_queue_events_test"
	require.Eventually(t, func() bool {
		return producer.Publish(ctx, topic, models.QueueEvent{
			ID:        "evt-1",
			EventType: models.EventMessageIngested,
			MessageID: "urn:uuid:0370c0fb",
			Status:    models.StatusQueued,
		}) == nil
	}, 30*time.Second, time.Second)

	consumer := NewKafkaConsumer(cfg, logger.NopLogger())
	consumer.SetServiceName("queue-worker-test")

	received := make(chan models.QueueEvent, 1)
	consumeCtx, cancel := context.WithCancel(ctx)
	go func() {
		_ = consumer.Consume(consumeCtx, topic, func(_ context.Context, event models.QueueEvent) error {
			select {
			case received <- event:
			default:
			}
			return nil
		})
	}()

	select {
	case event := <-received:
		assert.Equal(t, "urn:uuid:0370c0fb", event.MessageID)
		assert.Equal(t, models.EventMessageIngested, event.EventType)
	case <-time.After(60 * time.Second):
		t.Fatal("event not consumed")
	}

	cancel()
	require.NoError(t, consumer.Close())
}
