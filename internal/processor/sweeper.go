package processor

import (
	"context"

	"ldn/internal/config"
	"ldn/internal/logger"
	"ldn/internal/store"
	"ldn/pkg/metrics"
	"ldn/pkg/models"
	"ldn/pkg/tracing"
)

// TimeoutSweeper reconciles messages whose processing deadline elapsed:
// exhausted ones fail, the rest go back to the queue.
type TimeoutSweeper struct {
	store    store.MessageStore
	settings config.QueueSettingsProvider
	logger   logger.Logger
	opts     options
}

func NewTimeoutSweeper(st store.MessageStore, settings config.QueueSettingsProvider, log logger.Logger, opts ...Option) *TimeoutSweeper {
	return &TimeoutSweeper{
		store:    st,
		settings: settings,
		logger:   log,
		opts:     buildOptions(opts),
	}
}

// Sweep returns the number of messages it moved. A failed update is logged
// and the sweep continues with the next message.
func (s *TimeoutSweeper) Sweep(ctx context.Context) (int, error) {
	settings := s.settings.QueueSettings()

	ctx, span := tracing.StartSpan(ctx, "queue.sweep")
	defer span.End()

	stalled, err := s.store.FindStalledInProcessing(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.ErrorwCtx(ctx, "Failed to load stalled messages", "error", err)
		return 0, err
	}

	reconciled := 0
	for _, msg := range stalled {
		update := msg.Clone()
		if update.QueueAttempts >= settings.MaxProcessingAttempts {
			update.QueueStatus = models.StatusFailed
		} else {
			update.QueueStatus = models.StatusQueued
		}

		if err := s.store.Update(ctx, update); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to reconcile stalled message",
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}

		reconciled++
		metrics.IncSwept(string(update.QueueStatus))
		s.logger.InfowCtx(ctx, "Reconciled stalled message",
			"message_id", msg.ID,
			"status", update.QueueStatus,
			"attempts", update.QueueAttempts,
		)
		s.opts.events.Publish(ctx, models.EventForStatus(update.QueueStatus), update, "", "processing deadline elapsed")
	}

	return reconciled, nil
}
