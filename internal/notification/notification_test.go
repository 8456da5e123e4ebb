package notification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ldn/pkg/errors"
)

const reviewOffer = `{
  "@context": ["https://www.w3.org/ns/activitystreams", "https://purl.org/coar/notify"],
  "actor": {"id": "https://orcid.org/0000-0002-1825-0097", "name": "Josiah Carberry", "type": "Person"},
  "id": "urn:uuid:0370c0fb-bb78-4a9b-87f5-bed307a509dd",
  "object": {
    "id": "https://repo.example.org/items/3fa8d3c2",
    "ietf:cite-as": "https://doi.org/10.5555/12345680",
    "type": ["Page", "sorg:AboutPage"]
  },
  "origin": {"id": "https://repo.example.org", "inbox": "https://repo.example.org/ldn/inbox", "type": "Service"},
  "target": {"id": "https://review-service.example.com", "inbox": "https://review-service.example.com/inbox/", "type": "Service"},
  "type": ["Offer", "coar-notify:ReviewAction"]
}`

func TestParse(t *testing.T) {
	n, err := Parse([]byte(reviewOffer))
	require.NoError(t, err)

	assert.Equal(t, "urn:uuid:0370c0fb-bb78-4a9b-87f5-bed307a509dd", n.ID)
	assert.Equal(t, TypeSet{"Offer", "coar-notify:ReviewAction"}, n.Type)
	assert.Equal(t, "https://repo.example.org/ldn/inbox", n.OriginInbox())
	assert.Equal(t, "https://repo.example.org/items/3fa8d3c2", n.ObjectURL())
	assert.Equal(t, "", n.ContextURL())
	assert.True(t, n.Object.Type.Contains("sorg:aboutpage"))
}

func TestParse_SingleStringType(t *testing.T) {
	n, err := Parse([]byte(`{"id":"urn:uuid:1","type":"Announce","inReplyTo":"urn:uuid:0"}`))
	require.NoError(t, err)

	assert.Equal(t, TypeSet{"Announce"}, n.Type)
	assert.Equal(t, "urn:uuid:0", n.InReplyTo)

	out, err := json.Marshal(n.Type)
	require.NoError(t, err)
	assert.JSONEq(t, `"Announce"`, string(out))
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"id":`},
		{name: "missing id", raw: `{"type":"Offer"}`},
		{name: "missing type", raw: `{"id":"urn:uuid:1"}`},
		{name: "numeric type", raw: `{"id":"urn:uuid:1","type":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsPayloadMalformed(err))
		})
	}
}

func TestClassifyTypes(t *testing.T) {
	tests := []struct {
		name       string
		types      []string
		wantAS     string
		wantNotify string
	}{
		{name: "empty", types: nil},
		{name: "single", types: []string{"Offer"}, wantAS: "Offer"},
		{name: "lexicographic order", types: []string{"coar-notify:ReviewAction", "Offer"}, wantAS: "Offer", wantNotify: "coar-notify:ReviewAction"},
		{name: "duplicates collapse", types: []string{"Accept", "Accept"}, wantAS: "Accept"},
		{name: "third value ignored", types: []string{"Zeta", "Alpha", "Beta"}, wantAS: "Alpha", wantNotify: "Beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as, notify := ClassifyTypes(tt.types)
			assert.Equal(t, tt.wantAS, as)
			assert.Equal(t, tt.wantNotify, notify)
		})
	}
}

func TestPayloadMap(t *testing.T) {
	m, err := PayloadMap([]byte(reviewOffer))
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:0370c0fb-bb78-4a9b-87f5-bed307a509dd", m["id"])

	_, err = PayloadMap([]byte(`[1,2]`))
	assert.True(t, pkgerrors.IsPayloadMalformed(err))
}
