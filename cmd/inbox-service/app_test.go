package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/management"
	"ldn/pkg/models"
)

const (
	reviewInbox = "https://review.example.com/inbox/"
	itemURL     = "https://repo.example.org/items/3fa8d3c2"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Store:  config.StoreConfig{Driver: constants.StoreDriverMemory},
		LDN: config.LDNConfig{
			BaseURL:         "https://inbox.example.org/",
			MaxPayloadBytes: 1 << 20,
		},
		Resolver: config.ResolverConfig{
			Chain:           []string{constants.ResolverTypePrefix},
			ItemURLPrefixes: []string{"https://repo.example.org/items/"},
		},
		Handlers: []config.HandlerConfig{
			{Name: "accept-all", Action: constants.ActionAccept},
		},
	}

	app := NewApp(cfg, "", logger.NopLogger())
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() {
		_ = app.Shutdown(context.Background())
	})
	return app
}

func (a *App) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.RemoteAddr = "10.0.0.5:40000"
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func notificationBody(id, types, inbox, extra string) []byte {
	return []byte(fmt.Sprintf(`{
  "@context": ["https://www.w3.org/ns/activitystreams", "https://purl.org/coar/notify"],
  "id": %q,
  "type": %s,
  "origin": {"id": "https://review.example.com", "inbox": %q, "type": "Service"},
  "object": {"id": %q}%s
}`, id, types, inbox, itemURL, extra))
}

func (a *App) requestStatus(t *testing.T) []models.RequestStatus {
	t.Helper()
	w := a.do(t, http.MethodGet, "/api/v1/request-status?object=3fa8d3c2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var statuses []models.RequestStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statuses))
	return statuses
}

func (a *App) drain(t *testing.T) management.DrainResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/queue/drain", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp management.DrainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestApp_Health(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), constants.StoreDriverMemory)
}

func TestApp_OfferLifecycle(t *testing.T) {
	app := newTestApp(t)

	origin, _ := json.Marshal(map[string]interface{}{
		"name":           "Review Service",
		"url":            "https://review.example.com",
		"inbox_url":      reviewInbox,
		"ip_lower_bound": "10.0.0.1",
		"ip_upper_bound": "10.0.0.255",
	})
	w := app.do(t, http.MethodPost, "/api/v1/origins", "application/json", origin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/inbox", constants.ContentTypeLDJSON,
		notificationBody("urn:uuid:o1", `["Offer","coar-notify:ReviewAction"]`, reviewInbox, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "https://inbox.example.org/inbox/urn:uuid:o1", w.Header().Get("Location"))

	assert.Equal(t, 1, app.drain(t).ProcessedCount)

	statuses := app.requestStatus(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, models.OutcomeRequested, statuses[0].Outcome)
	assert.Equal(t, "Review Service", statuses[0].ServiceName)
	assert.Equal(t, "coar-notify:ReviewAction", statuses[0].OfferType)

	w = app.do(t, http.MethodPost, "/inbox", constants.ContentTypeLDJSON,
		notificationBody("urn:uuid:a1", `"Accept"`, reviewInbox, `,
  "inReplyTo": "urn:uuid:o1"`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, app.drain(t).ProcessedCount)

	statuses = app.requestStatus(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, models.OutcomeAccepted, statuses[0].Outcome)

	w = app.do(t, http.MethodGet, "/api/v1/messages/urn:uuid:o1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, models.StatusProcessed, msg.QueueStatus)
	assert.Equal(t, 1, msg.QueueAttempts)
}

func TestApp_UnknownOriginIsHeldThenRetrusted(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/inbox", constants.ContentTypeLDJSON,
		notificationBody("urn:uuid:u1", `"Announce"`, reviewInbox, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, 0, app.drain(t).ProcessedCount)

	w = app.do(t, http.MethodGet, "/api/v1/messages?status=UNTRUSTED", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var held []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &held))
	require.Len(t, held, 1)
	assert.Equal(t, "urn:uuid:u1", held[0].ID)

	origin, _ := json.Marshal(map[string]interface{}{
		"name":           "Review Service",
		"inbox_url":      reviewInbox,
		"ip_lower_bound": "10.0.0.0",
		"ip_upper_bound": "10.0.0.9",
	})
	w = app.do(t, http.MethodPost, "/api/v1/origins", "application/json", origin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/messages/urn:uuid:u1/retrust", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, 1, app.drain(t).ProcessedCount)

	w = app.do(t, http.MethodGet, "/api/v1/queue/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats management.QueueStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Counts[models.StatusProcessed])
	assert.Equal(t, 1, stats.Total)
}

func TestApp_URIMessageIDRoundTrip(t *testing.T) {
	app := newTestApp(t)
	const id = "https://review.example.com/notifications/42"

	w := app.do(t, http.MethodPost, "/inbox", constants.ContentTypeLDJSON,
		notificationBody(id, `"Announce"`, reviewInbox, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "https://inbox.example.org/inbox/"), location)
	path := strings.TrimPrefix(location, "https://inbox.example.org")

	w = app.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code, path)
	assert.Contains(t, w.Body.String(), id)

	escaped := url.PathEscape(id)
	w = app.do(t, http.MethodGet, "/api/v1/messages/"+escaped, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, models.StatusUntrusted, msg.QueueStatus)

	origin, _ := json.Marshal(map[string]interface{}{
		"name":           "Review Service",
		"inbox_url":      reviewInbox,
		"ip_lower_bound": "10.0.0.0",
		"ip_upper_bound": "10.0.0.9",
	})
	w = app.do(t, http.MethodPost, "/api/v1/origins", "application/json", origin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/messages/"+escaped+"/retrust", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, models.StatusQueued, msg.QueueStatus)
}
