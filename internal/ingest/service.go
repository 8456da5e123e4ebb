package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ldn/internal/broker"
	"ldn/internal/logger"
	"ldn/internal/notification"
	"ldn/internal/resolver"
	"ldn/internal/trust"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/logging"
	"ldn/pkg/metrics"
	"ldn/pkg/models"
	"ldn/pkg/tracing"
)

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, id string) (*models.Message, error)
}

type Option func(*Service)

// WithSchemaValidation rejects payloads that do not match the envelope
// schema before anything is resolved or stored.
func WithSchemaValidation(v *notification.SchemaValidator) Option {
	return func(s *Service) { s.schema = v }
}

func WithEvents(events *broker.EventPublisher) Option {
	return func(s *Service) { s.events = events }
}

// Service turns an inbound payload into a persisted, classified message.
type Service struct {
	store    MessageStore
	trust    *trust.Evaluator
	resolver resolver.ObjectResolver
	schema   *notification.SchemaValidator
	events   *broker.EventPublisher
	logger   logger.Logger
}

func NewService(st MessageStore, evaluator *trust.Evaluator, objects resolver.ObjectResolver, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		trust:    evaluator,
		resolver: objects,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores raw as a new message. Unresolvable object or reply
// references are left unset; a payload whose id already exists fails with
// ErrDuplicateMessage and leaves the stored message untouched.
func (s *Service) Ingest(ctx context.Context, raw []byte, sourceIP string) (*models.Message, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "inbox.ingest", attribute.String("ldn.source_ip", sourceIP))
	defer span.End()

	msg, err := s.ingest(ctx, raw, sourceIP)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.ObserveIngestDuration("rejected", time.Since(start))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ldn.message_id", msg.ID),
		attribute.String("ldn.queue_status", string(msg.QueueStatus)),
	)
	metrics.ObserveIngestDuration("accepted", time.Since(start))
	metrics.IncIngested(string(msg.QueueStatus))
	return msg, nil
}

func (s *Service) ingest(ctx context.Context, raw []byte, sourceIP string) (*models.Message, error) {
	if s.schema != nil {
		if err := s.schema.Validate(raw); err != nil {
			return nil, err
		}
	}

	n, err := notification.Parse(raw)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithMessageID(ctx, n.ID)

	asType, notifyType := n.Classify()
	msg := models.NewMessageBuilder(n.ID).
		WithTypes(asType, notifyType).
		WithObject(s.resolve(ctx, "object", n.ObjectURL())).
		WithContext(s.resolve(ctx, "context", n.ContextURL())).
		WithPayload(raw).
		WithSourceIP(sourceIP).
		Build()

	replyTo, err := s.replyTarget(ctx, n.InReplyTo)
	if err != nil {
		return nil, err
	}
	msg.InReplyToRef = replyTo

	classification, err := s.trust.Classify(ctx, msg, n.OriginInbox(), sourceIP)
	if err != nil {
		return nil, err
	}
	msg.OriginRef = classification.OriginRef()
	msg.QueueStatus = classification.Status

	if err := s.store.Create(ctx, msg); err != nil {
		if pkgerrors.IsDuplicate(err) {
			s.logger.InfowCtx(ctx, "Duplicate notification rejected", "message_id", msg.ID)
		}
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Notification received",
		"message_id", msg.ID,
		"activity_stream_type", msg.ActivityStreamType,
		"notify_type", msg.NotifyType,
		"queue_status", msg.QueueStatus,
		"origin_ref", msg.OriginRef,
		"source_ip", sourceIP,
	)
	s.events.Publish(ctx, models.EventMessageIngested, msg, "", "")
	return msg, nil
}

func (s *Service) resolve(ctx context.Context, field, url string) string {
	if url == "" || s.resolver == nil {
		return ""
	}
	ref, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		s.logger.InfowCtx(ctx, "Reference left unresolved",
			"field", field,
			"url", url,
			"error", err,
		)
		return ""
	}
	return ref
}

// replyTarget returns id when it names a stored message.
func (s *Service) replyTarget(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		if pkgerrors.IsNotFound(err) {
			s.logger.InfowCtx(ctx, "Reply target not found", "in_reply_to", id)
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// Retrust re-runs trust classification for a stored message against the
// current origin registry and sets its origin and status accordingly. The
// caller persists the result.
func (s *Service) Retrust(ctx context.Context, msg *models.Message) error {
	n, err := notification.Parse(msg.RawPayload)
	if err != nil {
		return err
	}

	classification, err := s.trust.Classify(ctx, msg, n.OriginInbox(), msg.SourceIP)
	if err != nil {
		return err
	}

	s.logger.InfowCtx(ctx, "Message trust re-evaluated",
		"message_id", msg.ID,
		"previous_status", msg.QueueStatus,
		"queue_status", classification.Status,
		"origin_ref", classification.OriginRef(),
	)
	msg.OriginRef = classification.OriginRef()
	msg.QueueStatus = classification.Status
	return nil
}
