package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ldn/internal/broker"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/notification"
	"ldn/pkg/circuitbreaker"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/retry"
)

// Action is the effect a RuleHandler applies once its predicate matched.
type Action interface {
	Type() string
	Apply(ctx context.Context, n *notification.Notification) error
}

// AcceptAction records the notification and succeeds. It suits deployments
// where the stored message itself is the outcome.
type AcceptAction struct {
	logger logger.Logger
}

func NewAcceptAction(log logger.Logger) *AcceptAction {
	return &AcceptAction{logger: log}
}

func (a *AcceptAction) Type() string {
	return constants.ActionAccept
}

func (a *AcceptAction) Apply(ctx context.Context, n *notification.Notification) error {
	as, notify := n.Classify()
	a.logger.InfowCtx(ctx, "Notification accepted",
		"notification_id", n.ID,
		"activity_stream_type", as,
		"notify_type", notify,
		"object", n.ObjectURL(),
	)
	return nil
}

// KafkaAction forwards the raw notification to a topic, keyed by its id.
type KafkaAction struct {
	producer broker.Producer
	topic    string
}

func NewKafkaAction(producer broker.Producer, topic string) *KafkaAction {
	return &KafkaAction{producer: producer, topic: topic}
}

func (a *KafkaAction) Type() string {
	return constants.ActionKafka
}

func (a *KafkaAction) Apply(ctx context.Context, n *notification.Notification) error {
	if err := a.producer.PublishRaw(ctx, a.topic, n.ID, n.Raw); err != nil {
		return pkgerrors.ErrHandlerFailure.WithCause(err).WithDetail("topic", a.topic)
	}
	return nil
}

// WebhookAction POSTs the raw notification to a URL. Server errors and
// transport failures are retried; a 4xx answer is final.
type WebhookAction struct {
	client  *http.Client
	url     string
	headers map[string]string
	cb      *circuitbreaker.Wrapper
	policy  retry.Policy
	logger  logger.Logger
}

type WebhookOption func(*WebhookAction)

func WithHTTPClient(c *http.Client) WebhookOption {
	return func(a *WebhookAction) { a.client = c }
}

func WithCircuitBreaker(cb *circuitbreaker.Wrapper) WebhookOption {
	return func(a *WebhookAction) { a.cb = cb }
}

func WithRetryPolicy(p retry.Policy) WebhookOption {
	return func(a *WebhookAction) { a.policy = p }
}

func NewWebhookAction(url string, headers map[string]string, timeout time.Duration, log logger.Logger, opts ...WebhookOption) *WebhookAction {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	a := &WebhookAction{
		client:  &http.Client{Timeout: timeout},
		url:     url,
		headers: headers,
		logger:  log,
		policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *WebhookAction) Type() string {
	return constants.ActionWebhook
}

func (a *WebhookAction) Apply(ctx context.Context, n *notification.Notification) error {
	err := retry.RetryWithCallback(ctx, a.policy, func() error {
		_, err := circuitbreaker.Call(ctx, a.cb, countsAsOutage, func() (struct{}, error) {
			return struct{}{}, a.post(ctx, n)
		})
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		a.logger.WarnwCtx(ctx, "Retrying webhook delivery",
			"url", a.url,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		return pkgerrors.ErrHandlerFailure.WithCause(err).WithDetail("url", a.url)
	}
	return nil
}

func (a *WebhookAction) post(ctx context.Context, n *notification.Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(n.Raw))
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", constants.ContentTypeLDJSON)
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax {
		return nil
	}

	statusErr := fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.NewFatalError(statusErr)
	}
	return statusErr
}

// countsAsOutage keeps client errors from tripping the breaker; only the
// endpoint being unreachable or failing server-side counts.
func countsAsOutage(err error) bool {
	return !retry.IsFatal(err)
}
