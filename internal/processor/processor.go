package processor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ldn/internal/broker"
	"ldn/internal/config"
	"ldn/internal/logger"
	"ldn/internal/notification"
	"ldn/internal/router"
	"ldn/internal/store"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/logging"
	"ldn/pkg/metrics"
	"ldn/pkg/models"
	"ldn/pkg/tracing"
)

// DrainResult summarises one DrainOnce pass.
type DrainResult struct {
	ProcessedCount int `json:"processed_count"`
	NoHandlerCount int `json:"no_handler_count"`
}

type Option func(*options)

type options struct {
	events *broker.EventPublisher
	clock  func() time.Time
}

func WithEvents(events *broker.EventPublisher) Option {
	return func(o *options) { o.events = events }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// QueueProcessor moves QUEUED messages through their handlers. It processes
// at most one message per DrainOnce, and every unroutable candidate scanned
// before it is parked in UNMAPPED_ACTION.
type QueueProcessor struct {
	store    store.MessageStore
	router   *router.Router
	settings config.QueueSettingsProvider
	logger   logger.Logger
	opts     options
}

func NewQueueProcessor(st store.MessageStore, r *router.Router, settings config.QueueSettingsProvider, log logger.Logger, opts ...Option) *QueueProcessor {
	return &QueueProcessor{
		store:    st,
		router:   r,
		settings: settings,
		logger:   log,
		opts:     buildOptions(opts),
	}
}

// DrainOnce runs a single processing pass. A store failure ends the pass
// early; the result then reflects the work done up to that point.
func (p *QueueProcessor) DrainOnce(ctx context.Context) (DrainResult, error) {
	var result DrainResult
	settings := p.settings.QueueSettings()

	ctx, span := tracing.StartSpan(ctx, "queue.drain")
	defer span.End()

	candidates, err := p.candidates(ctx, settings)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.IncDrainCycle("error")
		p.logger.ErrorwCtx(ctx, "Failed to load drain candidates", "error", err)
		return result, err
	}
	if len(candidates) == 0 {
		metrics.IncDrainCycle("idle")
		return result, nil
	}

	for _, msg := range candidates {
		handler := p.router.Route(msg)
		if handler == nil {
			if p.markUnmapped(ctx, msg) {
				result.NoHandlerCount++
			}
			continue
		}

		claimed, err := p.claim(ctx, msg, settings)
		if err != nil {
			if pkgerrors.IsStale(err) || pkgerrors.IsNotFound(err) {
				metrics.IncStaleClaim()
				p.logger.DebugwCtx(ctx, "Lost claim on message, skipping",
					"message_id", msg.ID,
				)
				continue
			}
			tracing.RecordError(span, err)
			metrics.IncDrainCycle("error")
			p.logger.ErrorwCtx(ctx, "Failed to claim message",
				"message_id", msg.ID,
				"error", err,
			)
			return result, err
		}

		p.process(ctx, claimed, handler)
		result.ProcessedCount = 1
		break
	}

	span.SetAttributes(
		attribute.Int("ldn.processed", result.ProcessedCount),
		attribute.Int("ldn.unmapped", result.NoHandlerCount),
	)
	if result.ProcessedCount > 0 {
		metrics.IncDrainCycle("processed")
	} else {
		metrics.IncDrainCycle("idle")
	}
	return result, nil
}

// candidates concatenates the oldest-first and reprocess queries, keeping
// the first occurrence of each id.
func (p *QueueProcessor) candidates(ctx context.Context, settings config.QueueSettings) ([]*models.Message, error) {
	oldest, err := p.store.FindOldestToProcess(ctx, settings.MaxProcessingAttempts, settings.CandidateLimit)
	if err != nil {
		return nil, err
	}
	reprocess, err := p.store.FindNeedingReprocess(ctx, settings.CandidateLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(oldest)+len(reprocess))
	out := make([]*models.Message, 0, len(oldest)+len(reprocess))
	for _, batch := range [][]*models.Message{oldest, reprocess} {
		for _, msg := range batch {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			out = append(out, msg)
		}
	}
	return out, nil
}

func (p *QueueProcessor) markUnmapped(ctx context.Context, msg *models.Message) bool {
	update := msg.Clone()
	update.QueueStatus = models.StatusUnmappedAction
	update.QueueAttempts++

	if err := p.store.Update(ctx, update); err != nil {
		if pkgerrors.IsStale(err) {
			metrics.IncStaleClaim()
		}
		p.logger.WarnwCtx(ctx, "Failed to mark message as unmapped",
			"message_id", msg.ID,
			"error", err,
		)
		return false
	}

	metrics.IncUnmapped()
	p.logger.InfowCtx(ctx, "No handler accepts message",
		"message_id", msg.ID,
		"activity_stream_type", msg.ActivityStreamType,
		"notify_type", msg.NotifyType,
	)
	p.opts.events.Publish(ctx, models.EventMessageUnmapped, update, "", "no capable handler")
	return true
}

func (p *QueueProcessor) claim(ctx context.Context, msg *models.Message, settings config.QueueSettings) (*models.Message, error) {
	// Stored timestamps keep microseconds at most.
	now := p.opts.clock().UTC().Truncate(time.Microsecond)
	deadline := now.Add(settings.StallTimeout)

	claimed := msg.Clone()
	claimed.QueueStatus = models.StatusProcessing
	claimed.QueueLastStartTime = &now
	claimed.QueueTimeout = &deadline

	if err := p.store.Update(ctx, claimed); err != nil {
		return nil, err
	}
	return claimed, nil
}

// process applies handler to a claimed message. The outcome and the attempt
// increment are persisted whatever the handler does.
func (p *QueueProcessor) process(ctx context.Context, msg *models.Message, handler router.Handler) {
	ctx = logging.WithMessageID(ctx, msg.ID)
	ctx, span := tracing.StartSpan(ctx, "queue.process",
		attribute.String("ldn.message_id", msg.ID),
		attribute.String("ldn.handler", handler.Name()),
	)
	defer span.End()

	status := models.StatusFailed
	reason := ""
	start := time.Now()
	defer func() {
		metrics.ObserveHandlerDuration(handler.Name(), time.Since(start))
		p.complete(context.WithoutCancel(ctx), msg, handler.Name(), status, reason)
	}()

	n, err := notification.Parse(msg.RawPayload)
	if err != nil {
		tracing.RecordError(span, err)
		reason = err.Error()
		p.logger.ErrorwCtx(ctx, "Stored payload is malformed",
			"message_id", msg.ID,
			"handler", handler.Name(),
			"error", err,
		)
		return
	}

	handlerCtx := ctx
	if msg.QueueTimeout != nil {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithDeadline(ctx, *msg.QueueTimeout)
		defer cancel()
	}

	if err := apply(handlerCtx, handler, n); err != nil {
		tracing.RecordError(span, err)
		reason = err.Error()
		p.logger.ErrorwCtx(ctx, "Handler failed",
			"message_id", msg.ID,
			"handler", handler.Name(),
			"error", err,
		)
		return
	}

	status = models.StatusProcessed
}

func apply(ctx context.Context, handler router.Handler, n *notification.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.RecoverPanicAs(r, pkgerrors.ErrHandlerFailure)
		}
	}()
	return handler.Apply(ctx, n)
}

// complete records the outcome. If the row moved under us, the outcome is
// applied to the fresh copy once, and only while that copy still belongs to
// this attempt: PROCESSING or QUEUED with the same start time. A row that was
// reclaimed by another worker or already settled keeps its status.
func (p *QueueProcessor) complete(ctx context.Context, msg *models.Message, handler string, status models.QueueStatus, reason string) {
	outcome := "processed"
	if status != models.StatusProcessed {
		outcome = "failed"
	}
	metrics.IncProcessed(handler, outcome)

	started := msg.QueueLastStartTime
	msg.QueueStatus = status
	msg.QueueAttempts++
	err := p.store.Update(ctx, msg)
	if pkgerrors.IsStale(err) {
		fresh, getErr := p.store.Get(ctx, msg.ID)
		if getErr != nil {
			err = getErr
		} else if !sameAttempt(fresh, started) {
			metrics.IncStaleClaim()
			p.logger.WarnwCtx(ctx, "Discarding outcome of superseded attempt",
				"message_id", msg.ID,
				"handler", handler,
				"outcome", status,
				"current_status", fresh.QueueStatus,
			)
			return
		} else {
			fresh.QueueStatus = status
			fresh.QueueAttempts++
			err = p.store.Update(ctx, fresh)
			msg = fresh
		}
	}
	if err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to record processing outcome",
			"message_id", msg.ID,
			"status", status,
			"error", err,
		)
		return
	}

	p.logger.InfowCtx(ctx, "Message processed",
		"message_id", msg.ID,
		"handler", handler,
		"status", status,
		"attempts", msg.QueueAttempts,
	)
	p.opts.events.Publish(ctx, models.EventForStatus(status), msg, handler, reason)
}

func sameAttempt(fresh *models.Message, started *time.Time) bool {
	if fresh.QueueStatus != models.StatusProcessing && fresh.QueueStatus != models.StatusQueued {
		return false
	}
	if started == nil || fresh.QueueLastStartTime == nil {
		return started == nil && fresh.QueueLastStartTime == nil
	}
	return fresh.QueueLastStartTime.Equal(*started)
}
