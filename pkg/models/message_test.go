package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueStatus_Requeueable(t *testing.T) {
	tests := []struct {
		status QueueStatus
		want   bool
	}{
		{StatusFailed, true},
		{StatusUnmappedAction, true},
		{StatusUntrustedIP, true},
		{StatusUntrusted, false},
		{StatusProcessed, false},
		{StatusProcessing, false},
		{StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Requeueable())
			assert.True(t, tt.status.Valid())
		})
	}

	assert.False(t, QueueStatus("DONE").Valid())
}

func TestMessage_CloneIsDeep(t *testing.T) {
	timeout := time.Now()
	orig := NewMessageBuilder("urn:uuid:1").
		WithPayload([]byte(`{"id":"urn:uuid:1"}`)).
		WithTimeout(timeout).
		Build()

	c := orig.Clone()
	c.RawPayload[0] = 'X'
	*c.QueueTimeout = timeout.Add(time.Hour)

	assert.Equal(t, byte('{'), orig.RawPayload[0])
	assert.Equal(t, timeout, *orig.QueueTimeout)
}

func TestMessage_IsType(t *testing.T) {
	m := NewMessageBuilder("urn:uuid:2").WithTypes("Offer", "coar-notify:ReviewAction").Build()

	assert.True(t, m.IsType("offer"))
	assert.False(t, m.IsType("Announce"))
}
