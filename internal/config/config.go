package config

import (
	"time"

	"ldn/internal/constants"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Store          StoreConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Queue          QueueConfig
	LDN            LDNConfig
	Resolver       ResolverConfig
	Handlers       []HandlerConfig
	Lease          LeaseConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// StoreConfig selects the message store backend. Postgres settings live under
// database.postgres; sqlite only needs a file path.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string    `mapstructure:"brokers"`
	GroupID      string      `mapstructure:"group_id"`
	EventsTopic  string      `mapstructure:"events_topic"`
	OriginsTopic string      `mapstructure:"origins_topic"`
	DLQTopic     string      `mapstructure:"dlq_topic"`
	Retry        RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// QueueConfig holds the processing limits. Zero values fall back to the
// defaults in constants; see QueueSettings.
type QueueConfig struct {
	IPRangeEnforcementEnabled     *bool         `mapstructure:"ip_range_enforcement_enabled"`
	MaxProcessingAttempts         int           `mapstructure:"max_processing_attempts"`
	ProcessingStallTimeoutMinutes int           `mapstructure:"processing_stall_timeout_minutes"`
	DrainInterval                 time.Duration `mapstructure:"drain_interval"`
	SweepInterval                 time.Duration `mapstructure:"sweep_interval"`
	MaxDrainsPerTick              int           `mapstructure:"max_drains_per_tick"`
	CandidateLimit                int           `mapstructure:"candidate_limit"`
}

type LDNConfig struct {
	// BaseURL is the public URL of the inbox, used for Location headers.
	BaseURL          string `mapstructure:"base_url"`
	SchemaValidation bool   `mapstructure:"schema_validation"`
	MaxPayloadBytes  int64  `mapstructure:"max_payload_bytes"`
}

type ResolverConfig struct {
	// Chain lists resolver types in the order they are consulted.
	Chain           []string          `mapstructure:"chain"`
	ItemURLPrefixes []string          `mapstructure:"item_url_prefixes"`
	CacheTTL        time.Duration     `mapstructure:"cache_ttl"`
	API             APIResolverConfig `mapstructure:"api"`
}

type APIResolverConfig struct {
	URL        string            `mapstructure:"url"`
	Headers    map[string]string `mapstructure:"headers"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	ResultPath string            `mapstructure:"result_path"`
}

// HandlerConfig declares one capability handler. Match is a CEL expression
// over activity_stream_type, notify_type, origin and payload.
type HandlerConfig struct {
	Name    string            `mapstructure:"name"`
	Match   string            `mapstructure:"match"`
	Action  string            `mapstructure:"action"`
	Topic   string            `mapstructure:"topic"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

type LeaseConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}

// QueueSettings is the resolved view of QueueConfig with defaults applied.
// Components read it per operation through a QueueSettingsProvider.
type QueueSettings struct {
	IPRangeEnforcementEnabled bool
	MaxProcessingAttempts     int
	StallTimeout              time.Duration
	CandidateLimit            int
}

func (q QueueConfig) Settings() QueueSettings {
	s := QueueSettings{
		IPRangeEnforcementEnabled: true,
		MaxProcessingAttempts:     q.MaxProcessingAttempts,
		StallTimeout:              time.Duration(q.ProcessingStallTimeoutMinutes) * time.Minute,
		CandidateLimit:            q.CandidateLimit,
	}
	if q.IPRangeEnforcementEnabled != nil {
		s.IPRangeEnforcementEnabled = *q.IPRangeEnforcementEnabled
	}
	if s.MaxProcessingAttempts <= 0 {
		s.MaxProcessingAttempts = constants.DefaultMaxProcessingAttempts
	}
	if s.StallTimeout <= 0 {
		s.StallTimeout = constants.DefaultStallTimeout
	}
	if s.CandidateLimit <= 0 {
		s.CandidateLimit = constants.DefaultCandidateLimit
	}
	return s
}

func (q QueueConfig) DrainEvery() time.Duration {
	if q.DrainInterval <= 0 {
		return constants.DefaultDrainInterval
	}
	return q.DrainInterval
}

func (q QueueConfig) SweepEvery() time.Duration {
	if q.SweepInterval <= 0 {
		return constants.DefaultSweepInterval
	}
	return q.SweepInterval
}

func (q QueueConfig) DrainsPerTick() int {
	if q.MaxDrainsPerTick <= 0 {
		return constants.DefaultMaxDrainsPerTick
	}
	return q.MaxDrainsPerTick
}

// QueueSettingsProvider hands out the current queue settings. It is consulted
// on every drain, sweep and trust decision so a reload takes effect on the
// next operation.
type QueueSettingsProvider interface {
	QueueSettings() QueueSettings
}

// StaticSettings is a fixed QueueSettingsProvider.
type StaticSettings QueueSettings

func (s StaticSettings) QueueSettings() QueueSettings {
	return QueueSettings(s)
}
