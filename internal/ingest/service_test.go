package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/config"
	"ldn/internal/logger"
	"ldn/internal/notification"
	"ldn/internal/processor"
	"ldn/internal/requeststatus"
	"ldn/internal/resolver"
	"ldn/internal/router"
	"ldn/internal/store"
	"ldn/internal/trust"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

const (
	originInbox = "https://review-service.example.com/inbox/"
	itemPrefix  = "https://repo.example.org/items/"
)

func payload(id, types, originInbox, extra string) []byte {
	return []byte(fmt.Sprintf(`{
  "@context": ["https://www.w3.org/ns/activitystreams", "https://purl.org/coar/notify"],
  "id": %q,
  "type": %s,
  "origin": {"id": "https://review-service.example.com", "inbox": %q, "type": "Service"},
  "object": {"id": "https://repo.example.org/items/3fa8d3c2"}%s
}`, id, types, originInbox, extra))
}

type env struct {
	store    *store.MemoryStore
	settings *config.StaticSettings
	service  *Service
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	settings := &config.StaticSettings{
		IPRangeEnforcementEnabled: true,
		MaxProcessingAttempts:     5,
		StallTimeout:              time.Hour,
		CandidateLimit:            100,
	}
	st := store.NewMemoryStore()
	evaluator := trust.NewEvaluator(st, settings, logger.NopLogger())
	objects := resolver.NewChain(logger.NopLogger(), resolver.NewPrefixResolver([]string{itemPrefix}))
	return &env{
		store:    st,
		settings: settings,
		service:  NewService(st, evaluator, objects, logger.NopLogger(), opts...),
	}
}

func (e *env) registerOrigin(t *testing.T) *models.OriginService {
	t.Helper()
	origin := &models.OriginService{
		Name:         "Review Service",
		URL:          "https://review-service.example.com",
		InboxURL:     originInbox,
		IPLowerBound: "10.0.0.1",
		IPUpperBound: "10.0.0.255",
		Enabled:      true,
	}
	require.NoError(t, e.store.CreateOrigin(context.Background(), origin))
	return origin
}

func TestIngest_DuplicateLeavesOriginal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.service.Ingest(ctx, payload("urn:uuid:1", `"Offer"`, originInbox, ""), "10.0.0.5")
	require.NoError(t, err)
	before, err := e.store.Get(ctx, first.ID)
	require.NoError(t, err)

	_, err = e.service.Ingest(ctx, payload("urn:uuid:1", `"Announce"`, "https://other.example.org/inbox", ""), "192.0.2.1")
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicateMessage)

	after, err := e.store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIngest_TrustClassification(t *testing.T) {
	tests := []struct {
		name        string
		types       string
		inbox       string
		sourceIP    string
		enforce     bool
		registered  bool
		wantStatus  models.QueueStatus
		wantsOrigin bool
	}{
		{name: "known origin in range", types: `"Announce"`, inbox: originInbox, sourceIP: "10.0.0.5", enforce: true, registered: true, wantStatus: models.StatusQueued, wantsOrigin: true},
		{name: "known origin out of range", types: `"Announce"`, inbox: originInbox, sourceIP: "192.0.2.1", enforce: true, registered: true, wantStatus: models.StatusUntrustedIP, wantsOrigin: true},
		{name: "out of range without enforcement", types: `"Announce"`, inbox: originInbox, sourceIP: "192.0.2.1", enforce: false, registered: true, wantStatus: models.StatusQueued, wantsOrigin: true},
		{name: "unknown origin offer", types: `["Offer","coar-notify:ReviewAction"]`, inbox: originInbox, sourceIP: "192.0.2.1", enforce: true, wantStatus: models.StatusQueued},
		{name: "unknown origin announce", types: `"Announce"`, inbox: originInbox, sourceIP: "10.0.0.5", enforce: true, wantStatus: models.StatusUntrusted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.settings.IPRangeEnforcementEnabled = tt.enforce
			var origin *models.OriginService
			if tt.registered {
				origin = e.registerOrigin(t)
			}

			msg, err := e.service.Ingest(context.Background(), payload("urn:uuid:1", tt.types, tt.inbox, ""), tt.sourceIP)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, msg.QueueStatus)
			assert.Equal(t, 0, msg.QueueAttempts)
			assert.Equal(t, tt.sourceIP, msg.SourceIP)
			if tt.wantsOrigin {
				assert.Equal(t, origin.ID, msg.OriginRef)
			} else {
				assert.Empty(t, msg.OriginRef)
			}
		})
	}
}

func TestIngest_UntrustedPromotedOnceOriginKnown(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	msg, err := e.service.Ingest(ctx, payload("urn:uuid:1", `"Announce"`, originInbox, ""), "10.0.0.5")
	require.NoError(t, err)
	require.Equal(t, models.StatusUntrusted, msg.QueueStatus)

	origin := e.registerOrigin(t)
	stored, err := e.store.Get(ctx, msg.ID)
	require.NoError(t, err)
	stored.OriginRef = origin.ID
	require.NoError(t, e.store.Update(ctx, stored))

	stored, err = e.store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, stored.QueueStatus)
}

func TestIngest_ClassifiesAndResolves(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.Ingest(ctx, payload("urn:uuid:offer", `["Offer","coar-notify:ReviewAction"]`, originInbox, ""), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "Offer", offer.ActivityStreamType)
	assert.Equal(t, "coar-notify:ReviewAction", offer.NotifyType)
	assert.Equal(t, "3fa8d3c2", offer.ObjectRef)
	assert.Empty(t, offer.ContextRef)
	assert.Empty(t, offer.InReplyToRef)

	reply, err := e.service.Ingest(ctx, payload("urn:uuid:reply", `"TentativeReject"`, originInbox,
		`, "inReplyTo": "urn:uuid:offer", "context": {"id": "https://elsewhere.example.org/x"}`), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:offer", reply.InReplyToRef)
	assert.Empty(t, reply.ContextRef, "unresolvable context is left unset")

	orphan, err := e.service.Ingest(ctx, payload("urn:uuid:orphan", `"Accept"`, originInbox,
		`, "inReplyTo": "urn:uuid:unknown"`), "10.0.0.5")
	require.NoError(t, err)
	assert.Empty(t, orphan.InReplyToRef)
}

func TestIngest_RejectsMalformed(t *testing.T) {
	validator, err := notification.NewSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		opts []Option
		raw  string
	}{
		{name: "not json", raw: `{"id":`},
		{name: "missing type", raw: `{"id":"urn:uuid:1"}`},
		{name: "schema: missing origin", opts: []Option{WithSchemaValidation(validator)}, raw: `{"id":"urn:uuid:1","type":"Offer","object":{"id":"https://x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.opts...)
			_, err := e.service.Ingest(context.Background(), []byte(tt.raw), "10.0.0.5")
			assert.ErrorIs(t, err, pkgerrors.ErrPayloadMalformed)

			counts, err := e.store.CountByStatus(context.Background())
			require.NoError(t, err)
			assert.Empty(t, counts[models.StatusQueued])
		})
	}
}

func TestOfferLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.registerOrigin(t)

	msg, err := e.service.Ingest(ctx, payload("urn:uuid:o1", `["Offer","coar-notify:ReviewAction"]`, originInbox, ""), "10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, msg.QueueStatus)

	always := router.Func{
		HandlerName: "accept-all",
		Accepts:     func(*models.Message) bool { return true },
	}
	p := processor.NewQueueProcessor(e.store, router.New(always), e.settings, logger.NopLogger())
	result, err := p.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	stored, err := e.store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, stored.QueueStatus)
	assert.Equal(t, 1, stored.QueueAttempts)

	statuses, err := requeststatus.NewResolver(e.store, logger.NopLogger()).Resolve(ctx, "3fa8d3c2")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, models.OutcomeRequested, statuses[0].Outcome)
	assert.Equal(t, "Review Service", statuses[0].ServiceName)
	assert.Equal(t, "coar-notify:ReviewAction", statuses[0].OfferType)
}

func TestService_RetrustAppliesIPRange(t *testing.T) {
	tests := []struct {
		name       string
		sourceIP   string
		wantStatus models.QueueStatus
	}{
		{name: "sender in range", sourceIP: "10.0.0.5", wantStatus: models.StatusQueued},
		{name: "sender out of range", sourceIP: "192.0.2.1", wantStatus: models.StatusUntrustedIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()

			msg, err := e.service.Ingest(ctx, payload("urn:uuid:held", `"Announce"`, originInbox, ""), tt.sourceIP)
			require.NoError(t, err)
			require.Equal(t, models.StatusUntrusted, msg.QueueStatus)

			origin := e.registerOrigin(t)
			stored, err := e.store.Get(ctx, msg.ID)
			require.NoError(t, err)

			require.NoError(t, e.service.Retrust(ctx, stored))
			assert.Equal(t, tt.wantStatus, stored.QueueStatus)
			assert.Equal(t, origin.ID, stored.OriginRef)
		})
	}
}
