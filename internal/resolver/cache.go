package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ldn/internal/constants"
)

// CacheResolver answers from Redis and stores what later resolvers found.
type CacheResolver struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheResolver(client *redis.Client, ttl time.Duration) *CacheResolver {
	if ttl <= 0 {
		ttl = constants.DefaultResolverCacheTTL
	}
	return &CacheResolver{client: client, ttl: ttl}
}

func (r *CacheResolver) Name() string {
	return constants.ResolverTypeCache
}

func (r *CacheResolver) Resolve(ctx context.Context, url string) (string, error) {
	val, err := r.client.Get(ctx, cacheKey(url)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

func (r *CacheResolver) Remember(ctx context.Context, url, ref string) error {
	if err := r.client.Set(ctx, cacheKey(url), ref, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(url string) string {
	return constants.CacheKeyPrefixResolve + url
}
