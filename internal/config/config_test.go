package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
server:
  port: 8081
store:
  driver: sqlite
  sqlite_path: /tmp/ldn-test.db
queue:
  ip_range_enforcement_enabled: false
  max_processing_attempts: 3
  processing_stall_timeout_minutes: 15
  drain_interval: 2s
resolver:
  chain: [prefix]
  item_url_prefixes:
    - https://repo.example.org/items/
handlers:
  - name: review-offers
    match: activity_stream_type == "Offer" && notify_type == "coar-notify:ReviewAction"
    action: accept
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func boolPtr(b bool) *bool {
	return &b
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Queue.DrainEvery())
	assert.Equal(t, []string{"https://repo.example.org/items/"}, cfg.Resolver.ItemURLPrefixes)
	require.Len(t, cfg.Handlers, 1)
	assert.Equal(t, "review-offers", cfg.Handlers[0].Name)
	assert.Equal(t, "accept", cfg.Handlers[0].Action)

	s := cfg.Queue.Settings()
	assert.False(t, s.IPRangeEnforcementEnabled)
	assert.Equal(t, 3, s.MaxProcessingAttempts)
	assert.Equal(t, 15*time.Minute, s.StallTimeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("QUEUE_MAX_PROCESSING_ATTEMPTS", "9")
	t.Setenv("RESOLVER_ITEM_URL_PREFIXES", "https://a.example/items/, https://b.example/items/")

	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Queue.Settings().MaxProcessingAttempts)
	assert.Equal(t, []string{"https://a.example/items/", "https://b.example/items/"}, cfg.Resolver.ItemURLPrefixes)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidHandler(t *testing.T) {
	body := testConfigYAML + `
  - name: forward
    match: "true"
    action: kafka
    topic: notifications
`
	_, err := LoadConfig(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka action requires broker.type kafka")
}

func TestQueueConfig_SettingsDefaults(t *testing.T) {
	tests := []struct {
		name     string
		cfg      QueueConfig
		expected QueueSettings
	}{
		{
			name: "zero values fall back to defaults",
			cfg:  QueueConfig{},
			expected: QueueSettings{
				IPRangeEnforcementEnabled: true,
				MaxProcessingAttempts:     5,
				StallTimeout:              60 * time.Minute,
				CandidateLimit:            100,
			},
		},
		{
			name: "explicit values are kept",
			cfg: QueueConfig{
				IPRangeEnforcementEnabled:     boolPtr(false),
				MaxProcessingAttempts:         2,
				ProcessingStallTimeoutMinutes: 1,
				CandidateLimit:                10,
			},
			expected: QueueSettings{
				IPRangeEnforcementEnabled: false,
				MaxProcessingAttempts:     2,
				StallTimeout:              time.Minute,
				CandidateLimit:            10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.Settings())
		})
	}
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
			Store:  StoreConfig{Driver: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "bolt" }, wantErr: "store.driver"},
		{name: "postgres without host", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "database.postgres.host"},
		{name: "negative attempts", mutate: func(c *Config) { c.Queue.MaxProcessingAttempts = -1 }, wantErr: "queue.max_processing_attempts"},
		{name: "cache resolver without redis", mutate: func(c *Config) { c.Resolver.Chain = []string{"cache"} }, wantErr: "resolver.chain[0]"},
		{name: "webhook without url", mutate: func(c *Config) {
			c.Handlers = []HandlerConfig{{Name: "h", Match: "true", Action: "webhook"}}
		}, wantErr: "handlers[0].url"},
		{name: "lease without redis", mutate: func(c *Config) { c.Lease.Enabled = true }, wantErr: "lease.enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatcher_ApplyNotifiesListeners(t *testing.T) {
	w, err := NewWatcher(writeConfig(t, testConfigYAML), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, w.QueueSettings().MaxProcessingAttempts)

	var got QueueSettings
	w.OnChange(func(s QueueSettings) { got = s })

	w.apply(QueueConfig{MaxProcessingAttempts: 7}.Settings())

	assert.Equal(t, 7, w.QueueSettings().MaxProcessingAttempts)
	assert.Equal(t, 7, got.MaxProcessingAttempts)
	assert.True(t, got.IPRangeEnforcementEnabled)
}

func TestStaticSettings(t *testing.T) {
	var p QueueSettingsProvider = StaticSettings{MaxProcessingAttempts: 4}
	assert.Equal(t, 4, p.QueueSettings().MaxProcessingAttempts)
}
