package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/pkg/circuitbreaker"
	"ldn/pkg/retry"
)

// APIResolver asks the repository's lookup endpoint. The configured URL
// carries a {url} placeholder; the object id is read from the JSON response
// at ResultPath (dot separated, default "id"). A 404 is a miss.
type APIResolver struct {
	client *http.Client
	cfg    config.APIResolverConfig
	cb     *circuitbreaker.Wrapper
	policy retry.Policy
}

type APIOption func(*APIResolver)

func WithAPICircuitBreaker(cb *circuitbreaker.Wrapper) APIOption {
	return func(r *APIResolver) { r.cb = cb }
}

func WithAPIRetryPolicy(p retry.Policy) APIOption {
	return func(r *APIResolver) { r.policy = p }
}

func NewAPIResolver(cfg config.APIResolverConfig, opts ...APIOption) *APIResolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	if cfg.ResultPath == "" {
		cfg.ResultPath = "id"
	}
	r := &APIResolver{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
		policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *APIResolver) Name() string {
	return constants.ResolverTypeAPI
}

func (r *APIResolver) Resolve(ctx context.Context, itemURL string) (string, error) {
	var ref string
	err := retry.Retry(ctx, r.policy, func() error {
		var err error
		ref, err = circuitbreaker.Call(ctx, r.cb, countsAsOutage, func() (string, error) {
			return r.fetch(ctx, itemURL)
		})
		return err
	})
	return ref, err
}

func (r *APIResolver) fetch(ctx context.Context, itemURL string) (string, error) {
	endpoint := strings.ReplaceAll(r.cfg.URL, "{url}", url.QueryEscape(itemURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		statusErr := fmt.Errorf("api returned status: %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return "", retry.NewFatalError(statusErr)
		}
		return "", statusErr
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
	}

	return lookupPath(result, r.cfg.ResultPath), nil
}

func lookupPath(data map[string]interface{}, path string) string {
	var current interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = m[part]
	}

	switch v := current.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func countsAsOutage(err error) bool {
	return !retry.IsFatal(err)
}
