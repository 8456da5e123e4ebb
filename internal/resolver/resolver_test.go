package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldn/internal/config"
	"ldn/internal/logger"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/retry"
)

type staticResolver struct {
	name  string
	refs  map[string]string
	err   error
	calls int
}

func (r *staticResolver) Name() string { return r.name }

func (r *staticResolver) Resolve(_ context.Context, url string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.refs[url], nil
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPrefixResolver(t *testing.T) {
	r := NewPrefixResolver([]string{
		"https://repo.example.org/items/",
		"https://hdl.handle.net/",
	})

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://repo.example.org/items/3fa8d3c2", want: "3fa8d3c2"},
		{url: "https://repo.example.org/items/3fa8d3c2/full", want: "3fa8d3c2"},
		{url: "https://repo.example.org/items/3fa8d3c2?mode=full#files", want: "3fa8d3c2"},
		{url: "https://hdl.handle.net/123456789", want: "123456789"},
		{url: "https://repo.example.org/items/", want: ""},
		{url: "https://elsewhere.example.org/items/3fa8d3c2", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChain_FirstHitWins(t *testing.T) {
	first := &staticResolver{name: "first", refs: map[string]string{}}
	second := &staticResolver{name: "second", refs: map[string]string{"https://x/1": "one"}}
	third := &staticResolver{name: "third", refs: map[string]string{"https://x/1": "other"}}

	ref, err := NewChain(logger.NopLogger(), first, second, third).Resolve(context.Background(), "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "one", ref)
	assert.Equal(t, 0, third.calls)
}

func TestChain_SkipsFailingResolver(t *testing.T) {
	broken := &staticResolver{name: "broken", err: errors.New("connection refused")}
	backup := &staticResolver{name: "backup", refs: map[string]string{"https://x/1": "one"}}

	ref, err := NewChain(logger.NopLogger(), broken, backup).Resolve(context.Background(), "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "one", ref)
}

func TestChain_Unresolvable(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		resolvers []ObjectResolver
	}{
		{name: "empty url", url: "", resolvers: []ObjectResolver{&staticResolver{name: "a"}}},
		{name: "all miss", url: "https://x/1", resolvers: []ObjectResolver{&staticResolver{name: "a"}}},
		{name: "all fail", url: "https://x/1", resolvers: []ObjectResolver{&staticResolver{name: "a", err: errors.New("down")}}},
		{name: "no resolvers", url: "https://x/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChain(logger.NopLogger(), tt.resolvers...).Resolve(context.Background(), tt.url)
			assert.ErrorIs(t, err, pkgerrors.ErrUnresolvableReference)
			assert.True(t, pkgerrors.IsUnresolvable(err))
		})
	}
}

func TestCacheResolver_RemembersDownstreamHits(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCacheResolver(client, time.Minute)
	source := &staticResolver{name: "source", refs: map[string]string{"https://x/1": "one"}}
	chain := NewChain(logger.NopLogger(), cache, source)

	ref, err := chain.Resolve(context.Background(), "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "one", ref)
	assert.Equal(t, 1, source.calls)

	ref, err = chain.Resolve(context.Background(), "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "one", ref)
	assert.Equal(t, 1, source.calls, "second lookup is served from redis")

	assert.Equal(t, time.Minute, mr.TTL("ldn:resolve:https://x/1"))

	mr.FastForward(2 * time.Minute)
	_, err = chain.Resolve(context.Background(), "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCacheResolver_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	_, err := NewCacheResolver(client, time.Minute).Resolve(context.Background(), "https://x/1")
	assert.Error(t, err)
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 1.5}
}

func TestAPIResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("uri") {
		case "https://repo.example.org/items/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"item":{"uuid":"3fa8d3c2"}}`))
		case "https://repo.example.org/items/bad":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	r := NewAPIResolver(config.APIResolverConfig{
		URL:        server.URL + "/lookup?uri={url}",
		Headers:    map[string]string{"Authorization": "Bearer t"},
		ResultPath: "item.uuid",
	}, WithAPIRetryPolicy(fastPolicy()))

	ref, err := r.Resolve(context.Background(), "https://repo.example.org/items/1")
	require.NoError(t, err)
	assert.Equal(t, "3fa8d3c2", ref)

	ref, err = r.Resolve(context.Background(), "https://repo.example.org/items/missing")
	require.NoError(t, err)
	assert.Empty(t, ref)

	_, err = r.Resolve(context.Background(), "https://repo.example.org/items/bad")
	assert.Error(t, err)
}

func TestAPIResolver_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"3fa8d3c2"}`))
	}))
	defer server.Close()

	r := NewAPIResolver(config.APIResolverConfig{URL: server.URL + "?u={url}"}, WithAPIRetryPolicy(fastPolicy()))

	ref, err := r.Resolve(context.Background(), "https://repo.example.org/items/1")
	require.NoError(t, err)
	assert.Equal(t, "3fa8d3c2", ref)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBuild(t *testing.T) {
	_, client := setupTestRedis(t)

	chain, err := Build(config.ResolverConfig{
		Chain:           []string{"prefix", "cache", "api"},
		ItemURLPrefixes: []string{"https://repo.example.org/items/"},
		API:             config.APIResolverConfig{URL: "http://localhost/lookup?u={url}"},
	}, Deps{Redis: client})
	require.NoError(t, err)

	var names []string
	for _, r := range chain.Resolvers() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"prefix", "cache", "api"}, names)

	_, err = Build(config.ResolverConfig{Chain: []string{"cache"}}, Deps{})
	assert.Error(t, err)
	_, err = Build(config.ResolverConfig{Chain: []string{"mongodb"}}, Deps{})
	assert.Error(t, err)
	_, err = Build(config.ResolverConfig{Chain: []string{"api"}}, Deps{})
	assert.Error(t, err)
	_, err = Build(config.ResolverConfig{Chain: []string{"ldap"}}, Deps{})
	assert.Error(t, err)

	chain, err = Build(config.ResolverConfig{}, Deps{})
	require.NoError(t, err)
	require.Len(t, chain.Resolvers(), 1)
	assert.Equal(t, "prefix", chain.Resolvers()[0].Name())
}
