package handlers

import (
	"context"

	"ldn/internal/logger"
	"ldn/internal/notification"
	"ldn/pkg/cel"
	"ldn/pkg/models"
)

// RuleHandler pairs a CEL match expression with an Action. It accepts a
// message when the expression evaluates to true against it.
type RuleHandler struct {
	name    string
	matcher *cel.Matcher
	action  Action
	logger  logger.Logger
}

func NewRuleHandler(name string, matcher *cel.Matcher, action Action, log logger.Logger) *RuleHandler {
	return &RuleHandler{
		name:    name,
		matcher: matcher,
		action:  action,
		logger:  log,
	}
}

func (h *RuleHandler) Name() string {
	return h.name
}

func (h *RuleHandler) Action() Action {
	return h.action
}

// CanHandle evaluates the match expression. A payload that does not decode
// is passed on as nil, which the matcher binds as an empty map, so
// type-based rules still route it. The processor then fails the message as
// malformed.
func (h *RuleHandler) CanHandle(msg *models.Message) bool {
	payload, err := notification.PayloadMap(msg.RawPayload)
	if err != nil {
		payload = nil
	}

	ok, err := h.matcher.Match(context.Background(), msg, payload)
	if err != nil {
		h.logger.Debugw("Match expression evaluation failed",
			"handler", h.name,
			"expression", h.matcher.Expression(),
			"message_id", msg.ID,
			"error", err,
		)
		return false
	}
	return ok
}

func (h *RuleHandler) Apply(ctx context.Context, n *notification.Notification) error {
	return h.action.Apply(ctx, n)
}
