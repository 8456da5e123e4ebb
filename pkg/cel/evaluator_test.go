package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/pkg/models"
)

func reviewOffer() *models.Message {
	return models.NewMessageBuilder("urn:uuid:0370c0fb-bb78-4a9b-87f5-bed307a509dd").
		WithTypes("Offer", "coar-notify:ReviewAction").
		WithObject("https://repo.example.org/items/42").
		WithOrigin("origin-1").
		Build()
}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name:      "valid type comparison",
			expr:      `activity_stream_type == "Offer"`,
			wantError: false,
		},
		{
			name:      "valid payload access",
			expr:      `payload.actor.name`,
			wantError: false,
		},
		{
			name:      "invalid expression",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `source == "test"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMatchExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, eval.ValidateMatchExpression(`notify_type == "coar-notify:ReviewAction"`))
	assert.Error(t, eval.ValidateMatchExpression(`attempts + 1`))
	assert.Error(t, eval.ValidateMatchExpression(`object`))
}

func TestMatchExpressionExamples(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range MatchExpressionExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.ValidateMatchExpression(expr))
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	payload := map[string]interface{}{
		"actor": map[string]interface{}{"type": "Service", "name": "Review Service"},
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{name: "review offer", expr: MatchExpressionExamples["review_offer"], expected: true},
		{name: "announce", expr: MatchExpressionExamples["any_announce"], expected: false},
		{name: "types list", expr: `"coar-notify:ReviewAction" in types`, expected: true},
		{name: "object prefix", expr: MatchExpressionExamples["object_prefix"], expected: true},
		{name: "payload actor", expr: MatchExpressionExamples["payload_actor"], expected: true},
		{name: "first attempt", expr: MatchExpressionExamples["first_attempt"], expected: true},
		{name: "lower ascii", expr: `activity_stream_type.lowerAscii() == "offer"`, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := eval.CompileMatcher(tt.expr)
			require.NoError(t, err)

			got, err := m.Match(context.Background(), reviewOffer(), payload)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMatcher_NilPayload(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	got, err := eval.EvaluateMatch(context.Background(), `has(payload.actor)`, reviewOffer(), nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCompileMatcher_RejectsNonBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.CompileMatcher(`id`)
	assert.Error(t, err)
}
