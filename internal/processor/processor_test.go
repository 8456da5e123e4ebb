package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/broker"
	"ldn/internal/config"
	"ldn/internal/logger"
	"ldn/internal/notification"
	"ldn/internal/router"
	"ldn/internal/store"
	"ldn/pkg/models"
)

// Handlers run under a deadline derived from the fixture clock, so the clock
// starts at the wall time.
var baseTime = time.Now().UTC().Truncate(time.Second)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingProducer struct {
	mu     sync.Mutex
	events []models.QueueEvent
}

func (p *recordingProducer) Publish(_ context.Context, _ string, event models.QueueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingProducer) PublishRaw(context.Context, string, string, []byte) error { return nil }
func (p *recordingProducer) Close() error                                             { return nil }

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

var settings = config.StaticSettings{
	IPRangeEnforcementEnabled: true,
	MaxProcessingAttempts:     5,
	StallTimeout:              time.Hour,
	CandidateLimit:            100,
}

type fixture struct {
	store  *store.MemoryStore
	clock  *testClock
	events *recordingProducer
}

func newFixture() *fixture {
	clock := &testClock{now: baseTime}
	return &fixture{
		store:  store.NewMemoryStore(store.WithClock(clock.Now)),
		clock:  clock,
		events: &recordingProducer{},
	}
}

func (f *fixture) processor(handlers ...router.Handler) *QueueProcessor {
	return NewQueueProcessor(f.store, router.New(handlers...), settings, logger.NopLogger(),
		WithClock(f.clock.Now),
		WithEvents(broker.NewEventPublisher(f.events, "ldn_queue_events", logger.NopLogger())),
	)
}

func (f *fixture) sweeper() *TimeoutSweeper {
	return NewTimeoutSweeper(f.store, settings, logger.NopLogger(), WithClock(f.clock.Now))
}

// seed stores a QUEUED message created age before the fixture clock.
func (f *fixture) seed(t *testing.T, asType string, age time.Duration) *models.Message {
	t.Helper()
	id := "urn:uuid:" + gofakeit.UUID()
	msg := models.NewMessageBuilder(id).
		WithTypes(asType, "").
		WithPayload([]byte(fmt.Sprintf(`{"id":%q,"type":%q}`, id, asType))).
		WithSourceIP(gofakeit.IPv4Address()).
		CreatedAt(f.clock.Now().Add(-age)).
		Build()
	require.NoError(t, f.store.Create(context.Background(), msg))
	return msg
}

func (f *fixture) get(t *testing.T, id string) *models.Message {
	t.Helper()
	msg, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return msg
}

func handlerFor(asType string, apply func(ctx context.Context, n *notification.Notification) error) router.Handler {
	return router.Func{
		HandlerName: asType + "-handler",
		Accepts:     func(msg *models.Message) bool { return msg.IsType(asType) },
		ApplyFunc:   apply,
	}
}

func succeed(context.Context, *notification.Notification) error { return nil }

func TestDrainOnce_EmptyQueue(t *testing.T) {
	f := newFixture()

	result, err := f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, result)
}

func TestDrainOnce_ProcessesOneMessagePerPass(t *testing.T) {
	f := newFixture()
	oldest := f.seed(t, "Offer", 3*time.Minute)
	second := f.seed(t, "Offer", 2*time.Minute)
	third := f.seed(t, "Offer", time.Minute)

	result, err := f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{ProcessedCount: 1}, result)

	processed := f.get(t, oldest.ID)
	assert.Equal(t, models.StatusProcessed, processed.QueueStatus)
	assert.Equal(t, 1, processed.QueueAttempts)
	require.NotNil(t, processed.QueueLastStartTime)
	assert.True(t, processed.QueueLastStartTime.Equal(baseTime))
	require.NotNil(t, processed.QueueTimeout)
	assert.True(t, processed.QueueTimeout.Equal(baseTime.Add(time.Hour)))

	for _, id := range []string{second.ID, third.ID} {
		untouched := f.get(t, id)
		assert.Equal(t, models.StatusQueued, untouched.QueueStatus)
		assert.Equal(t, 0, untouched.QueueAttempts)
	}
}

func TestDrainOnce_StopsScanningAtFirstRoutable(t *testing.T) {
	f := newFixture()
	routable := f.seed(t, "Offer", 3*time.Minute)
	unroutableA := f.seed(t, "Announce", 2*time.Minute)
	unroutableB := f.seed(t, "Undo", time.Minute)

	// Only candidates scanned before the routable one are swept.
	f.clock.Advance(time.Second)
	older := f.seed(t, "Flag", 10*time.Minute)

	result, err := f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.NoHandlerCount)

	assert.Equal(t, models.StatusUnmappedAction, f.get(t, older.ID).QueueStatus)
	assert.Equal(t, 1, f.get(t, older.ID).QueueAttempts)
	assert.Equal(t, models.StatusProcessed, f.get(t, routable.ID).QueueStatus)

	// Candidates after the processed one wait for the next pass.
	assert.Equal(t, models.StatusQueued, f.get(t, unroutableA.ID).QueueStatus)

	result, err = f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{NoHandlerCount: 2}, result)

	for _, id := range []string{unroutableA.ID, unroutableB.ID} {
		msg := f.get(t, id)
		assert.Equal(t, models.StatusUnmappedAction, msg.QueueStatus)
		assert.Equal(t, 1, msg.QueueAttempts)
	}
}

func TestDrainOnce_UnroutableOlderThanRoutable(t *testing.T) {
	f := newFixture()
	unroutableA := f.seed(t, "Announce", 3*time.Minute)
	unroutableB := f.seed(t, "Undo", 2*time.Minute)
	routable := f.seed(t, "Offer", time.Minute)

	result, err := f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{ProcessedCount: 1, NoHandlerCount: 2}, result)

	for _, id := range []string{unroutableA.ID, unroutableB.ID} {
		msg := f.get(t, id)
		assert.Equal(t, models.StatusUnmappedAction, msg.QueueStatus)
		assert.Equal(t, 1, msg.QueueAttempts)
	}
	assert.Equal(t, models.StatusProcessed, f.get(t, routable.ID).QueueStatus)
	assert.Equal(t, 1, f.get(t, routable.ID).QueueAttempts)
}

func TestDrainOnce_FailureOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		apply   func(context.Context, *notification.Notification) error
	}{
		{
			name:    "handler error",
			payload: []byte(`{"id":"urn:uuid:1","type":"Offer"}`),
			apply: func(context.Context, *notification.Notification) error {
				return errors.New("downstream rejected")
			},
		},
		{
			name:    "handler panic",
			payload: []byte(`{"id":"urn:uuid:1","type":"Offer"}`),
			apply: func(context.Context, *notification.Notification) error {
				panic("boom")
			},
		},
		{
			name:    "malformed payload",
			payload: []byte(`{"id":`),
			apply:   succeed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			msg := models.NewMessageBuilder("urn:uuid:1").
				WithTypes("Offer", "").
				WithPayload(tt.payload).
				Build()
			require.NoError(t, f.store.Create(context.Background(), msg))

			result, err := f.processor(handlerFor("Offer", tt.apply)).DrainOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, result.ProcessedCount)

			stored := f.get(t, msg.ID)
			assert.Equal(t, models.StatusFailed, stored.QueueStatus)
			assert.Equal(t, 1, stored.QueueAttempts)
			assert.Contains(t, f.events.types(), models.EventMessageFailed)
		})
	}
}

func TestDrainOnce_HandlerSeesParsedNotification(t *testing.T) {
	f := newFixture()
	msg := f.seed(t, "Offer", time.Minute)

	var got *notification.Notification
	_, err := f.processor(handlerFor("Offer", func(_ context.Context, n *notification.Notification) error {
		got = n
		return nil
	})).DrainOnce(context.Background())
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, []string{models.EventMessageProcessed}, f.events.types())
}

func TestDrainOnce_HonoursSoftFloor(t *testing.T) {
	f := newFixture()
	msg := models.NewMessageBuilder("urn:uuid:later").
		WithTypes("Offer", "").
		WithPayload([]byte(`{"id":"urn:uuid:later","type":"Offer"}`)).
		WithTimeout(baseTime.Add(time.Minute)).
		Build()
	require.NoError(t, f.store.Create(context.Background(), msg))
	p := f.processor(handlerFor("Offer", succeed))

	result, err := p.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, result)

	f.clock.Advance(2 * time.Minute)
	result, err = p.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
}

func TestDrainOnce_RetriesRequeuedMessage(t *testing.T) {
	f := newFixture()
	msg := models.NewMessageBuilder("urn:uuid:retry").
		WithTypes("Offer", "").
		WithAttempts(2).
		WithPayload([]byte(`{"id":"urn:uuid:retry","type":"Offer"}`)).
		Build()
	require.NoError(t, f.store.Create(context.Background(), msg))

	result, err := f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	stored := f.get(t, msg.ID)
	assert.Equal(t, models.StatusProcessed, stored.QueueStatus)
	assert.Equal(t, 3, stored.QueueAttempts)
}

// racingStore lets another worker claim the first candidate between the
// query and the claim.
type racingStore struct {
	*store.MemoryStore
	once sync.Once
}

func (s *racingStore) FindOldestToProcess(ctx context.Context, maxAttempts, limit int) ([]*models.Message, error) {
	candidates, err := s.MemoryStore.FindOldestToProcess(ctx, maxAttempts, limit)
	if err != nil || len(candidates) == 0 {
		return candidates, err
	}
	s.once.Do(func() {
		rival := candidates[0].Clone()
		rival.QueueStatus = models.StatusProcessing
		_ = s.MemoryStore.Update(ctx, rival)
	})
	return candidates, nil
}

func TestDrainOnce_SkipsLostClaim(t *testing.T) {
	f := newFixture()
	taken := f.seed(t, "Offer", 2*time.Minute)
	next := f.seed(t, "Offer", time.Minute)

	st := &racingStore{MemoryStore: f.store}
	p := NewQueueProcessor(st, router.New(handlerFor("Offer", succeed)), settings, logger.NopLogger(), WithClock(f.clock.Now))

	result, err := p.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	assert.Equal(t, models.StatusProcessing, f.get(t, taken.ID).QueueStatus)
	assert.Equal(t, 0, f.get(t, taken.ID).QueueAttempts)
	assert.Equal(t, models.StatusProcessed, f.get(t, next.ID).QueueStatus)
}

func TestDrainOnce_HandlerRunsUnderQueueDeadline(t *testing.T) {
	f := newFixture()
	f.seed(t, "Offer", time.Minute)

	var (
		deadline time.Time
		ok       bool
		ctxErr   error
	)
	_, err := f.processor(handlerFor("Offer", func(ctx context.Context, _ *notification.Notification) error {
		deadline, ok = ctx.Deadline()
		ctxErr = ctx.Err()
		return nil
	})).DrainOnce(context.Background())
	require.NoError(t, err)

	require.True(t, ok)
	assert.True(t, deadline.Equal(baseTime.Add(time.Hour)))
	assert.NoError(t, ctxErr)
}

// blockingHandler parks the first worker inside Apply until released.
type blockingHandler struct {
	started chan struct{}
	release chan error
}

func newBlockingHandler() *blockingHandler {
	return &blockingHandler{started: make(chan struct{}), release: make(chan error)}
}

func (h *blockingHandler) handler() router.Handler {
	return handlerFor("Offer", func(context.Context, *notification.Notification) error {
		close(h.started)
		return <-h.release
	})
}

func TestDrainOnce_LateOutcomeOfSupersededAttempt(t *testing.T) {
	tests := []struct {
		name         string
		secondWorker bool
		lateResult   error
		wantStatus   models.QueueStatus
		wantAttempts int
	}{
		{
			name:         "reclaimed and processed elsewhere",
			secondWorker: true,
			lateResult:   errors.New("downstream timed out"),
			wantStatus:   models.StatusProcessed,
			wantAttempts: 1,
		},
		{
			name:         "requeued but not yet reclaimed",
			lateResult:   nil,
			wantStatus:   models.StatusProcessed,
			wantAttempts: 1,
		},
		{
			name:         "requeued failure not yet reclaimed",
			lateResult:   errors.New("downstream rejected"),
			wantStatus:   models.StatusFailed,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			msg := f.seed(t, "Offer", time.Minute)
			slow := newBlockingHandler()

			done := make(chan error, 1)
			go func() {
				_, err := f.processor(slow.handler()).DrainOnce(context.Background())
				done <- err
			}()
			<-slow.started

			f.clock.Advance(2 * time.Hour)
			swept, err := f.sweeper().Sweep(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, swept)
			require.Equal(t, models.StatusQueued, f.get(t, msg.ID).QueueStatus)

			if tt.secondWorker {
				result, err := f.processor(handlerFor("Offer", succeed)).DrainOnce(context.Background())
				require.NoError(t, err)
				require.Equal(t, 1, result.ProcessedCount)
				require.Equal(t, models.StatusProcessed, f.get(t, msg.ID).QueueStatus)
			}

			slow.release <- tt.lateResult
			require.NoError(t, <-done)

			stored := f.get(t, msg.ID)
			assert.Equal(t, tt.wantStatus, stored.QueueStatus)
			assert.Equal(t, tt.wantAttempts, stored.QueueAttempts)
		})
	}
}

func TestDrainOnce_LateOutcomeKeepsSweptFailure(t *testing.T) {
	f := newFixture()
	msg := models.NewMessageBuilder("urn:uuid:exhausted").
		WithTypes("Offer", "").
		WithAttempts(settings.MaxProcessingAttempts - 1).
		WithPayload([]byte(`{"id":"urn:uuid:exhausted","type":"Offer"}`)).
		Build()
	require.NoError(t, f.store.Create(context.Background(), msg))
	slow := newBlockingHandler()

	done := make(chan error, 1)
	go func() {
		_, err := f.processor(slow.handler()).DrainOnce(context.Background())
		done <- err
	}()
	<-slow.started

	// A reload lowered the attempt limit while the handler was running.
	lowered := settings
	lowered.MaxProcessingAttempts = settings.MaxProcessingAttempts - 1
	f.clock.Advance(2 * time.Hour)
	swept, err := NewTimeoutSweeper(f.store, lowered, logger.NopLogger(), WithClock(f.clock.Now)).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Equal(t, models.StatusFailed, f.get(t, msg.ID).QueueStatus)

	slow.release <- nil
	require.NoError(t, <-done)

	stored := f.get(t, msg.ID)
	assert.Equal(t, models.StatusFailed, stored.QueueStatus)
	assert.Equal(t, settings.MaxProcessingAttempts-1, stored.QueueAttempts)
	assert.NotContains(t, f.events.types(), models.EventMessageProcessed)
}
