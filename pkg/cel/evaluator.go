package cel

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"ldn/pkg/models"
)

// Evaluator compiles match expressions over a stored notification. The
// variables available to an expression are:
//
//	id, activity_stream_type, notify_type, types, origin, object, context,
//	in_reply_to, attempts, payload
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("id", cel.StringType),
		cel.Variable("activity_stream_type", cel.StringType),
		cel.Variable("notify_type", cel.StringType),
		cel.Variable("types", cel.ListType(cel.StringType)),
		cel.Variable("origin", cel.StringType),
		cel.Variable("object", cel.StringType),
		cel.Variable("context", cel.StringType),
		cel.Variable("in_reply_to", cel.StringType),
		cel.Variable("attempts", cel.IntType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) ValidateMatchExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("match expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// Matcher is a compiled match expression. It is safe for concurrent use.
type Matcher struct {
	expression string
	program    cel.Program
}

func (e *Evaluator) CompileMatcher(expression string) (*Matcher, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("match expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Matcher{expression: expression, program: program}, nil
}

func (m *Matcher) Expression() string {
	return m.expression
}

// Match evaluates the expression against msg. payload is the decoded
// notification body and may be nil.
func (m *Matcher) Match(ctx context.Context, msg *models.Message, payload map[string]interface{}) (bool, error) {
	result, _, err := m.program.ContextEval(ctx, Vars(msg, payload))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// EvaluateMatch compiles and evaluates expression in one step. Callers that
// evaluate the same expression repeatedly should use CompileMatcher.
func (e *Evaluator) EvaluateMatch(ctx context.Context, expression string, msg *models.Message, payload map[string]interface{}) (bool, error) {
	m, err := e.CompileMatcher(expression)
	if err != nil {
		return false, err
	}
	return m.Match(ctx, msg, payload)
}

func Vars(msg *models.Message, payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return map[string]interface{}{
		"id":                   msg.ID,
		"activity_stream_type": msg.ActivityStreamType,
		"notify_type":          msg.NotifyType,
		"types":                splitTypes(msg.ActivityStreamType, msg.NotifyType),
		"origin":               msg.OriginRef,
		"object":               msg.ObjectRef,
		"context":              msg.ContextRef,
		"in_reply_to":          msg.InReplyToRef,
		"attempts":             int64(msg.QueueAttempts),
		"payload":              payload,
	}
}

func splitTypes(activityStreamType, notifyType string) []string {
	types := []string{}
	if activityStreamType != "" {
		types = append(types, activityStreamType)
	}
	for _, t := range strings.Split(notifyType, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}
