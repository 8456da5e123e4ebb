package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/notification"
	"ldn/pkg/models"
)

func byType(name, activityStreamType string) Func {
	return Func{
		HandlerName: name,
		Accepts: func(m *models.Message) bool {
			return m.ActivityStreamType == activityStreamType
		},
	}
}

func TestRouter_Route(t *testing.T) {
	r := New(byType("offers", "Offer"), byType("announces", "Announce"))
	r.Register(byType("offers-late", "Offer"))

	tests := []struct {
		name     string
		msgType  string
		expected string
	}{
		{name: "first registered wins", msgType: "Offer", expected: "offers"},
		{name: "second handler", msgType: "Announce", expected: "announces"},
		{name: "no handler", msgType: "Undo", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := models.NewMessageBuilder("urn:uuid:1").WithTypes(tt.msgType, "").Build()
			h := r.Route(msg)
			if tt.expected == "" {
				assert.Nil(t, h)
				return
			}
			require.NotNil(t, h)
			assert.Equal(t, tt.expected, h.Name())
		})
	}
}

func TestRouter_Handlers(t *testing.T) {
	r := New(byType("a", "Offer"))
	hs := r.Handlers()
	require.Len(t, hs, 1)

	hs[0] = byType("b", "Announce")
	assert.Equal(t, "a", r.Handlers()[0].Name())
}

func TestFunc_ApplyDefaults(t *testing.T) {
	f := Func{HandlerName: "noop"}
	assert.False(t, f.CanHandle(&models.Message{}))
	assert.NoError(t, f.Apply(context.Background(), &notification.Notification{}))
}
