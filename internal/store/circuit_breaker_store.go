package store

import (
	"context"
	"errors"
	"time"

	"ldn/internal/config"
	"ldn/pkg/circuitbreaker"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/metrics"
	"ldn/pkg/models"
)

// CircuitBreakerStore guards a backing Store with a circuit breaker and
// records query metrics. Only STORE_UNAVAILABLE failures count towards
// tripping the breaker; not-found, duplicate and stale outcomes are normal
// answers and pass straight through.
type CircuitBreakerStore struct {
	store    Store
	cb       *circuitbreaker.Wrapper
	database string
}

func NewCircuitBreakerStore(store Store, database string, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	s := &CircuitBreakerStore{store: store, database: database}
	if !cfg.Enabled {
		return s
	}

	s.cb = circuitbreaker.NewWrapper(circuitbreaker.Tuned("store-"+database, circuitbreaker.Tuning{
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		FailureRatio: cfg.FailureRatio,
		MinRequests:  cfg.MinRequests,
	}))
	return s
}

func guard[T any](ctx context.Context, s *CircuitBreakerStore, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := circuitbreaker.Call(ctx, s.cb, isUnavailable, fn)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("ldn", s.database, op, status)
	metrics.ObserveDatabaseQueryDuration("ldn", s.database, op, time.Since(start))

	if err != nil {
		var typed *pkgerrors.Error
		if !errors.As(err, &typed) {
			return v, storeUnavailable(op, err)
		}
	}
	return v, err
}

func isUnavailable(err error) bool {
	return errors.Is(err, pkgerrors.ErrStoreUnavailable)
}

func guardErr(ctx context.Context, s *CircuitBreakerStore, op string, fn func() error) error {
	_, err := guard(ctx, s, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (s *CircuitBreakerStore) Create(ctx context.Context, msg *models.Message) error {
	return guardErr(ctx, s, "create", func() error { return s.store.Create(ctx, msg) })
}

func (s *CircuitBreakerStore) Get(ctx context.Context, id string) (*models.Message, error) {
	return guard(ctx, s, "get", func() (*models.Message, error) { return s.store.Get(ctx, id) })
}

func (s *CircuitBreakerStore) Update(ctx context.Context, msg *models.Message) error {
	return guardErr(ctx, s, "update", func() error { return s.store.Update(ctx, msg) })
}

func (s *CircuitBreakerStore) FindOldestToProcess(ctx context.Context, maxAttempts, limit int) ([]*models.Message, error) {
	return guard(ctx, s, "find_oldest", func() ([]*models.Message, error) {
		return s.store.FindOldestToProcess(ctx, maxAttempts, limit)
	})
}

func (s *CircuitBreakerStore) FindNeedingReprocess(ctx context.Context, limit int) ([]*models.Message, error) {
	return guard(ctx, s, "find_reprocess", func() ([]*models.Message, error) {
		return s.store.FindNeedingReprocess(ctx, limit)
	})
}

func (s *CircuitBreakerStore) FindStalledInProcessing(ctx context.Context) ([]*models.Message, error) {
	return guard(ctx, s, "find_stalled", func() ([]*models.Message, error) {
		return s.store.FindStalledInProcessing(ctx)
	})
}

func (s *CircuitBreakerStore) FindByRelatedObject(ctx context.Context, objectRef, activityStreamType string) ([]*models.Message, error) {
	return guard(ctx, s, "find_by_object", func() ([]*models.Message, error) {
		return s.store.FindByRelatedObject(ctx, objectRef, activityStreamType)
	})
}

func (s *CircuitBreakerStore) FindReplies(ctx context.Context, inReplyTo, objectRef string, types []string) ([]*models.Message, error) {
	return guard(ctx, s, "find_replies", func() ([]*models.Message, error) {
		return s.store.FindReplies(ctx, inReplyTo, objectRef, types)
	})
}

func (s *CircuitBreakerStore) List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	return guard(ctx, s, "list", func() ([]*models.Message, error) { return s.store.List(ctx, filter) })
}

func (s *CircuitBreakerStore) CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	return guard(ctx, s, "count", func() (map[models.QueueStatus]int, error) { return s.store.CountByStatus(ctx) })
}

func (s *CircuitBreakerStore) CreateOrigin(ctx context.Context, origin *models.OriginService) error {
	return guardErr(ctx, s, "create_origin", func() error { return s.store.CreateOrigin(ctx, origin) })
}

func (s *CircuitBreakerStore) GetOrigin(ctx context.Context, id string) (*models.OriginService, error) {
	return guard(ctx, s, "get_origin", func() (*models.OriginService, error) { return s.store.GetOrigin(ctx, id) })
}

func (s *CircuitBreakerStore) FindOriginByInboxURL(ctx context.Context, inboxURL string) (*models.OriginService, error) {
	return guard(ctx, s, "find_origin", func() (*models.OriginService, error) {
		return s.store.FindOriginByInboxURL(ctx, inboxURL)
	})
}

func (s *CircuitBreakerStore) ListOrigins(ctx context.Context) ([]*models.OriginService, error) {
	return guard(ctx, s, "list_origins", func() ([]*models.OriginService, error) { return s.store.ListOrigins(ctx) })
}

func (s *CircuitBreakerStore) UpdateOrigin(ctx context.Context, origin *models.OriginService) error {
	return guardErr(ctx, s, "update_origin", func() error { return s.store.UpdateOrigin(ctx, origin) })
}

func (s *CircuitBreakerStore) DeleteOrigin(ctx context.Context, id string) error {
	return guardErr(ctx, s, "delete_origin", func() error { return s.store.DeleteOrigin(ctx, id) })
}

func (s *CircuitBreakerStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *CircuitBreakerStore) Close() error {
	return s.store.Close()
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}
