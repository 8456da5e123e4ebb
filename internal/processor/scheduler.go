package processor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ldn/internal/constants"
	"ldn/internal/lease"
	"ldn/internal/logger"
	"ldn/internal/store"
	"ldn/pkg/metrics"
	"ldn/pkg/models"
)

type SchedulerConfig struct {
	DrainInterval    time.Duration
	SweepInterval    time.Duration
	MaxDrainsPerTick int
	// Lease is optional. When set, each tick first takes the drain or
	// sweep lease and is skipped if another instance holds it.
	Lease    lease.Lease
	LeaseTTL time.Duration
}

// Scheduler runs DrainOnce and Sweep on their own tickers.
type Scheduler struct {
	processor *QueueProcessor
	sweeper   *TimeoutSweeper
	store     store.MessageStore
	cfg       SchedulerConfig
	trigger   chan struct{}
	logger    logger.Logger
}

func NewScheduler(processor *QueueProcessor, sweeper *TimeoutSweeper, st store.MessageStore, cfg SchedulerConfig, log logger.Logger) *Scheduler {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = constants.DefaultDrainInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = constants.DefaultSweepInterval
	}
	if cfg.MaxDrainsPerTick <= 0 {
		cfg.MaxDrainsPerTick = constants.DefaultMaxDrainsPerTick
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = constants.DefaultLeaseTTL
	}
	return &Scheduler{
		processor: processor,
		sweeper:   sweeper,
		store:     st,
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
		logger:    log,
	}
}

// Trigger requests a drain ahead of the next tick. Requests made while one
// is already pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Infow("Starting queue scheduler",
		"drain_interval", s.cfg.DrainInterval,
		"sweep_interval", s.cfg.SweepInterval,
		"max_drains_per_tick", s.cfg.MaxDrainsPerTick,
		"lease", s.cfg.Lease != nil,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.drainLoop(ctx)
		return nil
	})
	g.Go(func() error {
		s.sweepLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (s *Scheduler) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
		}
		s.DrainTick(ctx)
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.SweepTick(ctx)
		s.reportDepth(ctx)
	}
}

// DrainTick drains until a pass processes nothing, up to MaxDrainsPerTick
// passes, and returns the accumulated result.
func (s *Scheduler) DrainTick(ctx context.Context) DrainResult {
	var total DrainResult
	s.withLease(ctx, constants.LeaseKeyDrain, func(ctx context.Context) {
		for i := 0; i < s.cfg.MaxDrainsPerTick; i++ {
			if ctx.Err() != nil {
				return
			}
			result, err := s.processor.DrainOnce(ctx)
			total.ProcessedCount += result.ProcessedCount
			total.NoHandlerCount += result.NoHandlerCount
			if err != nil || result.ProcessedCount == 0 {
				return
			}
		}
	})
	return total
}

func (s *Scheduler) SweepTick(ctx context.Context) int {
	var reconciled int
	s.withLease(ctx, constants.LeaseKeySweep, func(ctx context.Context) {
		reconciled, _ = s.sweeper.Sweep(ctx)
	})
	return reconciled
}

func (s *Scheduler) withLease(ctx context.Context, key string, fn func(context.Context)) {
	if s.cfg.Lease == nil {
		fn(ctx)
		return
	}

	release, ok, err := s.cfg.Lease.Acquire(ctx, key, s.cfg.LeaseTTL)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to acquire lease, skipping tick",
			"lease", key,
			"error", err,
		)
		return
	}
	if !ok {
		s.logger.DebugwCtx(ctx, "Lease held by another instance, skipping tick", "lease", key)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to release lease", "lease", key, "error", err)
		}
	}()

	fn(ctx)
}

func (s *Scheduler) reportDepth(ctx context.Context) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.DebugwCtx(ctx, "Failed to count messages by status", "error", err)
		return
	}
	for _, status := range models.AllStatuses {
		metrics.SetQueueDepth(string(status), counts[status])
	}
}
