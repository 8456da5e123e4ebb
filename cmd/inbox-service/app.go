package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/lib/pq" // PostgreSQL driver

	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/ingest"
	"ldn/internal/logger"
	"ldn/internal/management"
	"ldn/internal/notification"
	"ldn/internal/requeststatus"
	"ldn/internal/resolver"
	"ldn/internal/store"
	"ldn/internal/trust"
	"ldn/pkg/bootstrap"
	"ldn/pkg/health"
	"ldn/pkg/metrics"
	"ldn/pkg/middleware"
	"ldn/pkg/ratelimit"
	"ldn/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const serviceName = "inbox-service"

type App struct {
	*bootstrap.Base
	configFile     string
	dbConnector    *bootstrap.DatabaseConnector
	settings       config.QueueSettingsProvider
	store          store.Store
	redis          *redis.Client
	mongoClient    *mongo.Client
	queue          *bootstrap.Queue
	ingest         *ingest.Service
	management     management.Service
	server         *http.Server
	router         *gin.Engine
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

	if err := a.initCore(ctx); err != nil {
		return err
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.initServer()
	return nil
}

// initCore builds everything below the HTTP layer. The drain and sweep
// commands stop here.
func (a *App) initCore(ctx context.Context) error {
	if err := a.initSettings(); err != nil {
		return fmt.Errorf("failed to initialize queue settings: %w", err)
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(serviceName, false); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	return nil
}

// initSettings watches the config file so queue settings can change without
// a restart.
func (a *App) initSettings() error {
	if a.configFile == "" {
		a.settings = config.StaticSettings(a.Config.Queue.Settings())
		return nil
	}

	watcher, err := config.NewWatcher(a.configFile, func(err error) {
		a.Logger.Errorw("Rejected config reload, keeping previous queue settings", "error", err)
	})
	if err != nil {
		return err
	}
	watcher.OnChange(func(s config.QueueSettings) {
		a.Logger.Infow("Queue settings reloaded",
			"max_processing_attempts", s.MaxProcessingAttempts,
			"stall_timeout", s.StallTimeout,
			"ip_range_enforcement_enabled", s.IPRangeEnforcementEnabled,
		)
	})
	a.settings = watcher
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	st, err := a.dbConnector.InitStore(ctx)
	if err != nil {
		return err
	}
	a.store = st

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	objects, err := a.dbConnector.ObjectsCollection(ctx, a.mongoClient)
	if err != nil {
		return err
	}

	chain, err := resolver.Build(a.Config.Resolver, resolver.Deps{
		Redis:          a.redis,
		Objects:        objects,
		CircuitBreaker: a.Config.CircuitBreaker,
		Logger:         a.Logger.Named("resolver"),
	})
	if err != nil {
		return err
	}

	ingestOpts := []ingest.Option{ingest.WithEvents(a.Events)}
	if a.Config.LDN.SchemaValidation {
		validator, err := notification.NewSchemaValidator()
		if err != nil {
			return err
		}
		ingestOpts = append(ingestOpts, ingest.WithSchemaValidation(validator))
	}

	evaluator := trust.NewEvaluator(a.store, a.settings, a.Logger.Named("trust"))
	a.ingest = ingest.NewService(a.store, evaluator, chain, a.Logger.Named("ingest"), ingestOpts...)

	queue, err := a.BuildQueue(a.store, a.settings, a.redis)
	if err != nil {
		return err
	}
	a.queue = queue

	var audit management.AuditLogger = management.NewMemoryAuditLogger()
	if db := a.dbConnector.SQL(); db != nil {
		audit = management.NewSQLAuditLogger(db)
	}

	opts := []management.ServiceOption{
		management.WithAudit(audit),
		management.WithQueueEvents(a.Events),
		management.WithQueueRunner(queue.Scheduler),
		management.WithClassifier(a.ingest),
	}
	if a.Config.Broker.Type != "" {
		topic := a.Config.Broker.Kafka.OriginsTopic
		if topic == "" {
			topic = constants.DefaultOriginsTopic
		}
		opts = append(opts, management.WithOriginEvents(management.NewOriginEventProducer(a.Producer, topic)))
	}

	statuses := requeststatus.NewResolver(a.store, a.Logger.Named("requeststatus"))
	a.management = management.NewService(a.store, statuses, a.Logger.Named("management"), opts...)
	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Message ids are URIs; their path segment arrives percent-encoded.
	router.UseRawPath = true
	router.UnescapePathValues = true

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	var inboxLimit, adminLimit []gin.HandlerFunc
	if a.Config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.Config.RateLimit)
		inboxLimit = append(inboxLimit, ratelimit.RateLimitMiddleware(ctx, "inbox", rateLimitConfig))
		adminLimit = append(adminLimit, ratelimit.RateLimitMiddleware(ctx, "admin", rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	inboxHandler := ingest.NewHandler(a.ingest, a.store, a.Config.LDN.BaseURL, a.Config.LDN.MaxPayloadBytes, a.Logger.Named("inbox"))
	inboxHandler.RegisterRoutes(router, inboxLimit...)

	adminHandler := management.NewHandler(a.management, a.Logger.Named("admin"))
	adminHandler.RegisterRoutes(router, adminLimit...)

	metrics.RegisterInboxMetrics()
	metrics.RegisterWorkerMetrics()
	metrics.RegisterResolverMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterDatabaseMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewStoreChecker(a.Config.Store.Driver, a.store))
	if a.redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.mongoClient))
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

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	return a.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

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

		return append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.mongoClient)...)
	})
}
