package trust

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/config"
	"ldn/internal/logger"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

type fakeOrigins struct {
	byInbox map[string]*models.OriginService
	err     error
}

func (f *fakeOrigins) FindOriginByInboxURL(_ context.Context, inboxURL string) (*models.OriginService, error) {
	if f.err != nil {
		return nil, f.err
	}
	if o, ok := f.byInbox[inboxURL]; ok {
		return o, nil
	}
	return nil, pkgerrors.ErrNotFound
}

const knownInbox = "https://review-service.example.com/inbox/"

func newTestEvaluator(enforce bool, origins ...*models.OriginService) *Evaluator {
	lookup := &fakeOrigins{byInbox: map[string]*models.OriginService{}}
	for _, o := range origins {
		lookup.byInbox[o.InboxURL] = o
	}
	settings := config.StaticSettings{IPRangeEnforcementEnabled: enforce, MaxProcessingAttempts: 5}
	return NewEvaluator(lookup, settings, logger.NopLogger())
}

func knownOrigin() *models.OriginService {
	return &models.OriginService{
		ID:           "origin-1",
		Name:         "Review Service",
		InboxURL:     knownInbox,
		IPLowerBound: "10.0.0.1",
		IPUpperBound: "10.0.0.9",
		Enabled:      true,
	}
}

func TestEvaluator_Classify(t *testing.T) {
	announce := models.NewMessageBuilder("urn:uuid:a").WithTypes("Announce", "coar-notify:ReviewAction").Build()
	offer := models.NewMessageBuilder("urn:uuid:o").WithTypes("Offer", "coar-notify:ReviewAction").Build()
	lowerOffer := models.NewMessageBuilder("urn:uuid:l").WithTypes("offer", "").Build()

	tests := []struct {
		name       string
		enforce    bool
		msg        *models.Message
		claimed    string
		sourceIP   string
		wantStatus models.QueueStatus
		wantOrigin bool
	}{
		{name: "known origin in range", enforce: true, msg: announce, claimed: knownInbox, sourceIP: "10.0.0.5", wantStatus: models.StatusQueued, wantOrigin: true},
		{name: "known origin out of range", enforce: true, msg: announce, claimed: knownInbox, sourceIP: "192.168.0.1", wantStatus: models.StatusUntrustedIP, wantOrigin: true},
		{name: "out of range with enforcement off", enforce: false, msg: announce, claimed: knownInbox, sourceIP: "192.168.0.1", wantStatus: models.StatusQueued, wantOrigin: true},
		{name: "unparsable source ip", enforce: true, msg: announce, claimed: knownInbox, sourceIP: "unknown", wantStatus: models.StatusUntrustedIP, wantOrigin: true},
		{name: "unknown origin non-offer", enforce: true, msg: announce, claimed: "https://stranger.example/inbox", sourceIP: "10.0.0.5", wantStatus: models.StatusUntrusted},
		{name: "unknown origin offer", enforce: true, msg: offer, claimed: "https://stranger.example/inbox", sourceIP: "10.0.0.5", wantStatus: models.StatusQueued},
		{name: "offer check is case-insensitive", enforce: true, msg: lowerOffer, claimed: "", sourceIP: "", wantStatus: models.StatusQueued},
		{name: "no claimed origin non-offer", enforce: true, msg: announce, claimed: "", sourceIP: "10.0.0.5", wantStatus: models.StatusUntrusted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(tt.enforce, knownOrigin())

			got, err := e.Classify(context.Background(), tt.msg, tt.claimed, tt.sourceIP)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got.Status)
			if tt.wantOrigin {
				require.NotNil(t, got.Origin)
				assert.Equal(t, "origin-1", got.OriginRef())
			} else {
				assert.Nil(t, got.Origin)
				assert.Empty(t, got.OriginRef())
			}
		})
	}
}

func TestEvaluator_DisabledOriginIsUnknown(t *testing.T) {
	origin := knownOrigin()
	origin.Enabled = false
	e := newTestEvaluator(true, origin)

	msg := models.NewMessageBuilder("urn:uuid:a").WithTypes("Announce", "").Build()
	got, err := e.Classify(context.Background(), msg, knownInbox, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUntrusted, got.Status)
}

func TestEvaluator_LookupFailure(t *testing.T) {
	lookup := &fakeOrigins{err: pkgerrors.ErrStoreUnavailable.WithCause(errors.New("connection refused"))}
	e := NewEvaluator(lookup, config.StaticSettings{IPRangeEnforcementEnabled: true}, logger.NopLogger())

	msg := models.NewMessageBuilder("urn:uuid:a").WithTypes("Announce", "").Build()
	_, err := e.Classify(context.Background(), msg, knownInbox, "10.0.0.5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrStoreUnavailable))
}
