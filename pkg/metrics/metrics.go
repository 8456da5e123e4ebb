package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldn_ingested_messages_total",
			Help: "Total number of notifications received by the inbox, by resulting queue status (count)",
		},
		[]string{"status"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldn_ingest_duration_ms",
			Help:    "Duration of inbox ingestion in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"outcome"},
	)

	ProcessedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldn_processed_messages_total",
			Help: "Total number of messages taken through a handler, by handler and outcome (count)",
		},
		[]string{"handler", "outcome"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldn_handler_duration_ms",
			Help:    "Duration of handler application in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"handler"},
	)

	UnmappedMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ldn_unmapped_messages_total",
			Help: "Total number of messages no handler could route (count)",
		},
	)

	StaleClaimsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ldn_stale_claims_total",
			Help: "Total number of claims lost to a concurrent transition (count)",
		},
	)

	DrainCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldn_drain_cycles_total",
			Help: "Total number of drain cycles by result (count)",
		},
		[]string{"result"},
	)

	SweptMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldn_swept_messages_total",
			Help: "Total number of stalled messages recovered by the sweeper, by resulting status (count)",
		},
		[]string{"status"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldn_queue_depth",
			Help: "Number of stored messages per queue status (count)",
		},
		[]string{"status"},
	)

	LeaseAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldn_lease_acquisitions_total",
			Help: "Total number of lease acquisition attempts by result (count)",
		},
		[]string{"lease", "result"},
	)

	ResolverRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldn_resolver_requests_total",
			Help: "Total number of item resolution requests by resolver and status (count)",
		},
		[]string{"resolver", "status"},
	)

	ResolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldn_resolver_duration_ms",
			Help:    "Duration of item resolution requests in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"resolver"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"scope", "status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

// register tolerates collectors that are already registered so that the
// shared groups below can be requested by more than one component.
func register(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func RegisterInboxMetrics() {
	register(IngestedMessagesTotal, IngestDuration, RateLimitRequestsTotal, QueueDepth)
	RegisterDatabaseMetrics()
}

func RegisterWorkerMetrics() {
	register(
		ProcessedMessagesTotal,
		HandlerDuration,
		UnmappedMessagesTotal,
		StaleClaimsTotal,
		DrainCyclesTotal,
		SweptMessagesTotal,
		QueueDepth,
		LeaseAcquisitionsTotal,
	)
	RegisterDatabaseMetrics()
}

func RegisterResolverMetrics() {
	register(ResolverRequestsTotal, ResolverDuration)
}

func RegisterBrokerMetrics() {
	register(
		RetryAttemptsTotal,
		DLQMessagesTotal,
		KafkaMessagesReadTotal,
		KafkaMessagesWrittenTotal,
		KafkaMessageSizeBytes,
		KafkaConsumerLag,
		KafkaReadDuration,
		KafkaWriteDuration,
	)
}

func RegisterCircuitBreakerMetrics() {
	register(CircuitBreakerState, CircuitBreakerRequests, CircuitBreakerFailures)
}

func RegisterDatabaseMetrics() {
	register(DatabaseQueriesTotal, DatabaseQueryDuration)
}

func IncIngested(status string) {
	IngestedMessagesTotal.WithLabelValues(status).Inc()
}

func ObserveIngestDuration(outcome string, duration time.Duration) {
	IngestDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncProcessed(handler, outcome string) {
	ProcessedMessagesTotal.WithLabelValues(handler, outcome).Inc()
}

func ObserveHandlerDuration(handler string, duration time.Duration) {
	HandlerDuration.WithLabelValues(handler).Observe(float64(duration.Milliseconds()))
}

func IncUnmapped() {
	UnmappedMessagesTotal.Inc()
}

func IncStaleClaim() {
	StaleClaimsTotal.Inc()
}

func IncDrainCycle(result string) {
	DrainCyclesTotal.WithLabelValues(result).Inc()
}

func IncSwept(status string) {
	SweptMessagesTotal.WithLabelValues(status).Inc()
}

func SetQueueDepth(status string, count int) {
	QueueDepth.WithLabelValues(status).Set(float64(count))
}

func IncLeaseAcquisition(lease, result string) {
	LeaseAcquisitionsTotal.WithLabelValues(lease, result).Inc()
}

func IncResolverRequest(resolver, status string) {
	ResolverRequestsTotal.WithLabelValues(resolver, status).Inc()
}

func ObserveResolverDuration(resolver string, duration time.Duration) {
	ResolverDuration.WithLabelValues(resolver).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
