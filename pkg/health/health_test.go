package health

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func TestCheckerRegistry_Check(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name       string
		required   error
		optional   error
		wantStatus Status
	}{
		{name: "all healthy", wantStatus: StatusHealthy},
		{name: "optional down", optional: down, wantStatus: StatusDegraded},
		{name: "required down", required: down, wantStatus: StatusUnhealthy},
		{name: "both down", required: down, optional: down, wantStatus: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewCheckerRegistry()
			registry.Register(NewStoreChecker("store", fakePinger{err: tt.required}))
			registry.RegisterOptional(NewStoreChecker("cache", fakePinger{err: tt.optional}))

			h := registry.Check(context.Background())
			assert.Equal(t, tt.wantStatus, h.Status)
			require.Len(t, h.Checks, 2)
			if tt.required != nil {
				assert.Contains(t, h.Checks["store"].Message, "connection refused")
			}
		})
	}
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	mr.Close()
	assert.Error(t, checker.Check(context.Background()))
}
