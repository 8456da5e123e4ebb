package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaReadTimeout  = 500 * time.Millisecond
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixResolve = "ldn:resolve:"
	LeaseKeyDrain         = "ldn:lease:drain"
	LeaseKeySweep         = "ldn:lease:sweep"
)

const (
	DefaultEventsTopic  = "ldn_queue_events"
	DefaultOriginsTopic = "ldn_origin_events"
)

const (
	DefaultMongoDBName           = "ldn"
	DefaultObjectsCollectionName = "repository_objects"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit       = 100
	MaxLimit           = 1000
	DefaultTruncateLen = 100
)

// Queue defaults applied when the corresponding setting is unset or zero.
const (
	DefaultMaxProcessingAttempts = 5
	DefaultStallTimeout          = 60 * time.Minute
	DefaultDrainInterval         = 10 * time.Second
	DefaultSweepInterval         = 5 * time.Minute
	DefaultMaxDrainsPerTick      = 100
	DefaultCandidateLimit        = 100
)

const (
	DefaultResolverCacheTTL = time.Hour
	DefaultLeaseTTL         = 2 * time.Minute
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

const (
	ActionAccept  = "accept"
	ActionKafka   = "kafka"
	ActionWebhook = "webhook"
)

const (
	ResolverTypePrefix = "prefix"
	ResolverTypeCache  = "cache"
	ResolverTypeMongo  = "mongodb"
	ResolverTypeAPI    = "api"
)

const (
	ContentTypeLDJSON = "application/ld+json"
	UnknownService    = "Unknown Service"
)
