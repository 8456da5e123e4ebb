package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/store"
	"ldn/internal/trigger"
	"ldn/pkg/bootstrap"
	"ldn/pkg/health"
	"ldn/pkg/metrics"
	"ldn/pkg/middleware"
	"ldn/pkg/tracing"
)

const serviceName = "queue-worker"

type App struct {
	*bootstrap.Base
	configFile     string
	dbConnector    *bootstrap.DatabaseConnector
	settings       config.QueueSettingsProvider
	store          store.Store
	redis          *redis.Client
	queue          *bootstrap.Queue
	trigger        *trigger.Handler
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, configFile string, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		configFile:  configFile,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	watcher, err := config.NewWatcher(a.configFile, func(err error) {
		a.Logger.Errorw("Rejected config reload, keeping previous queue settings", "error", err)
	})
	if err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	a.settings = watcher

	st, err := a.dbConnector.InitStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	a.store = st

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	a.redis = rdb

	if err := a.InitBroker(serviceName, true); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	queue, err := a.BuildQueue(a.store, a.settings, a.redis)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.queue = queue
	a.trigger = trigger.NewHandler(queue.Scheduler, a.Logger.Named("trigger"))

	metrics.RegisterWorkerMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterDatabaseMetrics()

	a.initServer()
	return nil
}

func (a *App) initServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewStoreChecker(a.Config.Store.Driver, a.store))
	if a.redis != nil {
		// Passes cannot take their lease without redis.
		if a.Config.Lease.Enabled {
			healthRegistry.Register(health.NewRedisChecker(a.redis))
		} else {
			healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
		}
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}
}

// Run drives the scheduler and, when a broker is configured, consumes queue
// events to trigger early drains. The store and broker are closed only after
// the scheduler has returned.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.queue.Scheduler.Run(gctx)
	})

	if a.Consumer != nil {
		topic := a.EventsTopic()
		a.Logger.InfowCtx(ctx, "Consuming queue events", "topic", topic)
		g.Go(func() error {
			err := a.Consumer.Consume(gctx, topic, a.trigger.HandleQueueEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "Health server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	runErr := g.Wait()
	if err := a.Shutdown(ctx); err != nil {
		if runErr != nil {
			return fmt.Errorf("%w; %v", runErr, err)
		}
		return err
	}
	return runErr
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	return a.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("store close error: %w", err))
			}
		}

		return append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, nil)...)
	})
}
