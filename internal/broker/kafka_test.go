package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/config"
	"ldn/internal/logger"
	"ldn/pkg/logging"
	"ldn/pkg/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaProducer{writer: w, logger: logger.NopLogger(), serviceName: "test"}

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	event := models.QueueEvent{
		ID:        "evt-1",
		EventType: models.EventMessageIngested,
		MessageID: "urn:uuid:1",
		Status:    models.StatusQueued,
		Timestamp: time.Now().UTC(),
	}

	require.NoError(t, p.Publish(ctx, "ldn_queue_events", event))
	require.Len(t, w.messages, 1)

	m := w.messages[0]
	assert.Equal(t, "ldn_queue_events", m.Topic)
	assert.Equal(t, []byte("urn:uuid:1"), m.Key)

	var decoded models.QueueEvent
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, models.EventMessageIngested, decoded.EventType)
	assert.Equal(t, "trace-1", decoded.Metadata.TraceID)
}

func TestKafkaProducer_PublishRawError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := &KafkaProducer{writer: w, logger: logger.NopLogger(), serviceName: "test"}

	err := p.PublishRaw(context.Background(), "notifications", "urn:uuid:1", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func testConsumer() *KafkaConsumer {
	return NewKafkaConsumer(config.KafkaConfig{
		Retry: config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1},
	}, logger.NopLogger())
}

func TestKafkaConsumer_ProcessWithRetry(t *testing.T) {
	calls := 0
	err := testConsumer().processWithRetry(context.Background(), models.QueueEvent{MessageID: "m"}, func(context.Context, models.QueueEvent) error {
		calls++
		if calls < 3 {
			return errors.New("store busy")
		}
		return nil
	}, "topic")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestKafkaConsumer_PanicIsNotRetried(t *testing.T) {
	calls := 0
	err := testConsumer().processWithRetry(context.Background(), models.QueueEvent{MessageID: "m"}, func(context.Context, models.QueueEvent) error {
		calls++
		panic("handler exploded")
	}, "topic")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewProducer(t *testing.T) {
	p, err := NewProducer(config.BrokerConfig{}, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, NopProducer{}, p)
	assert.NoError(t, p.Publish(context.Background(), "t", models.QueueEvent{}))

	_, err = NewProducer(config.BrokerConfig{Type: "rabbitmq"}, logger.NopLogger())
	assert.Error(t, err)
}
