package bootstrap

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"ldn/internal/config"
	"ldn/internal/handlers"
	"ldn/internal/lease"
	"ldn/internal/processor"
	"ldn/internal/router"
	"ldn/internal/store"
)

type Queue struct {
	Processor *processor.QueueProcessor
	Sweeper   *processor.TimeoutSweeper
	Scheduler *processor.Scheduler
}

// BuildQueue wires the configured handlers into a router and builds the
// processor, sweeper and scheduler over st. rdb may be nil unless
// lease.enabled is set.
func (b *Base) BuildQueue(st store.MessageStore, settings config.QueueSettingsProvider, rdb *redis.Client) (*Queue, error) {
	hs, err := handlers.Build(b.Config.Handlers, handlers.Deps{
		Producer:       b.Producer,
		CircuitBreaker: b.Config.CircuitBreaker,
		Logger:         b.Logger.Named("handlers"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build handlers: %w", err)
	}
	if len(hs) == 0 {
		b.Logger.Warn("No handlers configured, every queued message will be marked UNMAPPED_ACTION")
	}

	r := router.New(hs...)
	opts := []processor.Option{processor.WithEvents(b.Events)}

	proc := processor.NewQueueProcessor(st, r, settings, b.Logger.Named("processor"), opts...)
	sweeper := processor.NewTimeoutSweeper(st, settings, b.Logger.Named("sweeper"), opts...)

	cfg := processor.SchedulerConfig{
		DrainInterval:    b.Config.Queue.DrainEvery(),
		SweepInterval:    b.Config.Queue.SweepEvery(),
		MaxDrainsPerTick: b.Config.Queue.DrainsPerTick(),
		LeaseTTL:         b.Config.Lease.TTL,
	}
	if b.Config.Lease.Enabled {
		if rdb == nil {
			return nil, fmt.Errorf("lease.enabled requires database.redis")
		}
		cfg.Lease = lease.NewRedisLease(rdb)
	}

	return &Queue{
		Processor: proc,
		Sweeper:   sweeper,
		Scheduler: processor.NewScheduler(proc, sweeper, st, cfg, b.Logger.Named("scheduler")),
	}, nil
}
