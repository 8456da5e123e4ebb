package resolver

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/pkg/circuitbreaker"
)

type Deps struct {
	Redis          *redis.Client
	Objects        *mongo.Collection
	CircuitBreaker config.CircuitBreakerConfig
	Logger         logger.Logger
}

// Build assembles the chain listed in cfg.Chain. An empty chain defaults to
// the prefix resolver alone.
func Build(cfg config.ResolverConfig, deps Deps) (*Chain, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger()
	}

	chain := cfg.Chain
	if len(chain) == 0 {
		chain = []string{constants.ResolverTypePrefix}
	}

	resolvers := make([]ObjectResolver, 0, len(chain))
	for _, kind := range chain {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case constants.ResolverTypePrefix:
			resolvers = append(resolvers, NewPrefixResolver(cfg.ItemURLPrefixes))

		case constants.ResolverTypeCache:
			if deps.Redis == nil {
				return nil, fmt.Errorf("resolver %q requires redis", kind)
			}
			resolvers = append(resolvers, NewCacheResolver(deps.Redis, cfg.CacheTTL))

		case constants.ResolverTypeMongo:
			if deps.Objects == nil {
				return nil, fmt.Errorf("resolver %q requires mongodb", kind)
			}
			resolvers = append(resolvers, NewMongoResolver(deps.Objects))

		case constants.ResolverTypeAPI:
			if cfg.API.URL == "" {
				return nil, fmt.Errorf("resolver %q requires resolver.api.url", kind)
			}
			var opts []APIOption
			if deps.CircuitBreaker.Enabled {
				opts = append(opts, WithAPICircuitBreaker(circuitbreaker.NewWrapper(
					circuitbreaker.Tuned("resolver-api", circuitbreaker.Tuning{
						MaxRequests:  deps.CircuitBreaker.MaxRequests,
						Interval:     deps.CircuitBreaker.Interval,
						Timeout:      deps.CircuitBreaker.Timeout,
						FailureRatio: deps.CircuitBreaker.FailureRatio,
						MinRequests:  deps.CircuitBreaker.MinRequests,
					}),
				)))
			}
			resolvers = append(resolvers, NewAPIResolver(cfg.API, opts...))

		default:
			return nil, fmt.Errorf("unknown resolver type %q", kind)
		}
	}

	return NewChain(deps.Logger, resolvers...), nil
}
