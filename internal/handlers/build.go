package handlers

import (
	"fmt"
	"strings"

	"ldn/internal/broker"
	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/router"
	"ldn/pkg/cel"
	"ldn/pkg/circuitbreaker"
)

type Deps struct {
	Producer       broker.Producer
	CircuitBreaker config.CircuitBreakerConfig
	Logger         logger.Logger
}

// Build compiles the configured handlers in order. Handler order is routing
// order: the first handler whose expression matches receives the message.
func Build(cfgs []config.HandlerConfig, deps Deps) ([]router.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger()
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(cfgs))
	handlers := make([]router.Handler, 0, len(cfgs))
	for i, hc := range cfgs {
		if hc.Name == "" {
			return nil, fmt.Errorf("handlers[%d]: name is required", i)
		}
		if _, dup := seen[hc.Name]; dup {
			return nil, fmt.Errorf("handlers[%d]: duplicate handler name %q", i, hc.Name)
		}
		seen[hc.Name] = struct{}{}

		match := strings.TrimSpace(hc.Match)
		if match == "" {
			match = "true"
		}
		matcher, err := evaluator.CompileMatcher(match)
		if err != nil {
			return nil, fmt.Errorf("handler %q: %w", hc.Name, err)
		}

		action, err := buildAction(hc, deps)
		if err != nil {
			return nil, fmt.Errorf("handler %q: %w", hc.Name, err)
		}

		handlers = append(handlers, NewRuleHandler(hc.Name, matcher, action, deps.Logger.Named(hc.Name)))
	}

	return handlers, nil
}

func buildAction(hc config.HandlerConfig, deps Deps) (Action, error) {
	switch strings.ToLower(hc.Action) {
	case "", constants.ActionAccept:
		return NewAcceptAction(deps.Logger), nil

	case constants.ActionKafka:
		if hc.Topic == "" {
			return nil, fmt.Errorf("kafka action requires a topic")
		}
		if deps.Producer == nil {
			return nil, fmt.Errorf("kafka action requires a configured broker")
		}
		return NewKafkaAction(deps.Producer, hc.Topic), nil

	case constants.ActionWebhook:
		if hc.URL == "" {
			return nil, fmt.Errorf("webhook action requires a url")
		}
		var opts []WebhookOption
		if deps.CircuitBreaker.Enabled {
			cb := circuitbreaker.NewWrapper(circuitbreaker.Tuned("webhook-"+hc.Name, circuitbreaker.Tuning{
				MaxRequests:  deps.CircuitBreaker.MaxRequests,
				Interval:     deps.CircuitBreaker.Interval,
				Timeout:      deps.CircuitBreaker.Timeout,
				FailureRatio: deps.CircuitBreaker.FailureRatio,
				MinRequests:  deps.CircuitBreaker.MinRequests,
			}))
			opts = append(opts, WithCircuitBreaker(cb))
		}
		return NewWebhookAction(hc.URL, hc.Headers, hc.Timeout, deps.Logger, opts...), nil

	default:
		return nil, fmt.Errorf("unknown action %q", hc.Action)
	}
}
