package resolver

import (
	"context"
	"time"

	"ldn/internal/logger"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/metrics"
)

// ObjectResolver maps a URL found in a notification to the id of a
// repository object. A miss is ("", nil); an error means the source could
// not be consulted.
type ObjectResolver interface {
	Name() string
	Resolve(ctx context.Context, url string) (string, error)
}

// Remembering resolvers are told about refs found further down a chain so
// the next lookup of the same URL stops with them.
type Remembering interface {
	Remember(ctx context.Context, url, ref string) error
}

// Chain consults its resolvers in order and returns the first ref found.
type Chain struct {
	resolvers []ObjectResolver
	logger    logger.Logger
}

func NewChain(log logger.Logger, resolvers ...ObjectResolver) *Chain {
	return &Chain{resolvers: resolvers, logger: log}
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Resolvers() []ObjectResolver {
	out := make([]ObjectResolver, len(c.resolvers))
	copy(out, c.resolvers)
	return out
}

// Resolve returns ErrUnresolvableReference when no resolver knows url.
// Failing resolvers are logged and skipped.
func (c *Chain) Resolve(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", pkgerrors.ErrUnresolvableReference.WithDetail("url", url)
	}

	var lastErr error
	for i, r := range c.resolvers {
		start := time.Now()
		ref, err := r.Resolve(ctx, url)
		metrics.ObserveResolverDuration(r.Name(), time.Since(start))

		if err != nil {
			metrics.IncResolverRequest(r.Name(), "error")
			c.logger.WarnwCtx(ctx, "Resolver failed",
				"resolver", r.Name(),
				"url", url,
				"error", err,
			)
			lastErr = err
			continue
		}
		if ref == "" {
			metrics.IncResolverRequest(r.Name(), "miss")
			continue
		}

		metrics.IncResolverRequest(r.Name(), "hit")
		c.remember(ctx, c.resolvers[:i], url, ref)
		return ref, nil
	}

	appErr := pkgerrors.ErrUnresolvableReference.WithDetail("url", url)
	if lastErr != nil {
		appErr = appErr.WithCause(lastErr)
	}
	return "", appErr
}

func (c *Chain) remember(ctx context.Context, earlier []ObjectResolver, url, ref string) {
	for _, r := range earlier {
		rm, ok := r.(Remembering)
		if !ok {
			continue
		}
		if err := rm.Remember(ctx, url, ref); err != nil {
			c.logger.DebugwCtx(ctx, "Failed to remember resolved reference",
				"resolver", r.Name(),
				"url", url,
				"error", err,
			)
		}
	}
}
