package config

import (
	"fmt"
	"strings"

	"ldn/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateStore(cfg.Store, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateQueue(cfg.Queue); err != nil {
		errors = append(errors, err)
	}

	if err := validateResolver(cfg.Resolver, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	for i, h := range cfg.Handlers {
		if err := validateHandler(i, h, cfg.Broker); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Lease.Enabled && cfg.Database.Redis.Host == "" {
		errors = append(errors, &ValidationError{
			Field:   "lease.enabled",
			Message: "lease requires database.redis to be configured",
		})
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateBroker accepts an empty type: the broker is optional and only
// carries queue events and drain triggers.
func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.InitialInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "database.redis.ttl_seconds",
			Message: "TTL must be non-negative",
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateStore(cfg StoreConfig, db DatabaseConfig) error {
	switch strings.ToLower(cfg.Driver) {
	case constants.StoreDriverPostgres:
		if db.Postgres.Host == "" {
			return &ValidationError{
				Field:   "database.postgres.host",
				Message: "postgres store requires database.postgres to be configured",
			}
		}
	case constants.StoreDriverSQLite:
		if cfg.SQLitePath == "" {
			return &ValidationError{
				Field:   "store.sqlite_path",
				Message: "sqlite store requires a file path",
			}
		}
	case constants.StoreDriverMemory:
	default:
		return &ValidationError{
			Field:   "store.driver",
			Message: fmt.Sprintf("unknown store driver: %s (supported: postgres, sqlite, memory)", cfg.Driver),
		}
	}
	return nil
}

func validateQueue(cfg QueueConfig) error {
	if cfg.MaxProcessingAttempts < 0 {
		return &ValidationError{
			Field:   "queue.max_processing_attempts",
			Message: "max_processing_attempts must be non-negative",
		}
	}

	if cfg.ProcessingStallTimeoutMinutes < 0 {
		return &ValidationError{
			Field:   "queue.processing_stall_timeout_minutes",
			Message: "processing_stall_timeout_minutes must be non-negative",
		}
	}

	if cfg.DrainInterval < 0 || cfg.SweepInterval < 0 {
		return &ValidationError{
			Field:   "queue.drain_interval",
			Message: "drain and sweep intervals must be non-negative",
		}
	}

	return nil
}

func validateResolver(cfg ResolverConfig, db DatabaseConfig) error {
	for i, kind := range cfg.Chain {
		field := fmt.Sprintf("resolver.chain[%d]", i)
		switch kind {
		case constants.ResolverTypePrefix:
		case constants.ResolverTypeCache:
			if db.Redis.Host == "" {
				return &ValidationError{Field: field, Message: "cache resolver requires database.redis"}
			}
		case constants.ResolverTypeMongo:
			if db.MongoDB.URI == "" {
				return &ValidationError{Field: field, Message: "mongodb resolver requires database.mongodb"}
			}
		case constants.ResolverTypeAPI:
			if cfg.API.URL == "" {
				return &ValidationError{Field: "resolver.api.url", Message: "api resolver requires a URL"}
			}
		default:
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown resolver type: %s (supported: prefix, cache, mongodb, api)", kind),
			}
		}
	}
	return nil
}

func validateHandler(i int, cfg HandlerConfig, broker BrokerConfig) error {
	field := fmt.Sprintf("handlers[%d]", i)

	if cfg.Name == "" {
		return &ValidationError{Field: field + ".name", Message: "handler name is required"}
	}

	if strings.TrimSpace(cfg.Match) == "" {
		return &ValidationError{Field: field + ".match", Message: "match expression is required"}
	}

	switch cfg.Action {
	case constants.ActionAccept:
	case constants.ActionKafka:
		if broker.Type != "kafka" {
			return &ValidationError{Field: field + ".action", Message: "kafka action requires broker.type kafka"}
		}
		if cfg.Topic == "" {
			return &ValidationError{Field: field + ".topic", Message: "kafka action requires a topic"}
		}
	case constants.ActionWebhook:
		if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
			return &ValidationError{Field: field + ".url", Message: "webhook action requires an http(s) URL"}
		}
	default:
		return &ValidationError{
			Field:   field + ".action",
			Message: fmt.Sprintf("unknown action: %s (supported: accept, kafka, webhook)", cfg.Action),
		}
	}

	return nil
}
