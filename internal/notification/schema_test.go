package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ldn/pkg/errors"
)

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "coar review offer", raw: reviewOffer},
		{
			name: "cite-as only object",
			raw:  `{"id":"urn:uuid:1","type":"Announce","origin":{"id":"https://a","inbox":"https://a/inbox"},"object":{"ietf:cite-as":"https://doi.org/10.1/x"}}`,
		},
		{
			name:    "missing origin",
			raw:     `{"id":"urn:uuid:1","type":"Offer","object":{"id":"https://x"}}`,
			wantErr: true,
		},
		{
			name:    "origin without inbox",
			raw:     `{"id":"urn:uuid:1","type":"Offer","origin":{"id":"https://a"},"object":{"id":"https://x"}}`,
			wantErr: true,
		},
		{
			name:    "empty type array",
			raw:     `{"id":"urn:uuid:1","type":[],"origin":{"id":"https://a","inbox":"https://a/inbox"},"object":{"id":"https://x"}}`,
			wantErr: true,
		},
		{name: "invalid json", raw: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.raw))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsPayloadMalformed(err))
		})
	}
}
