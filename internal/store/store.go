package store

import (
	"context"
	"strings"
	"time"

	"ldn/pkg/models"
)

// MessageStore is the durable queue. Update is the only place a status
// transition is committed and it is guarded by the message version: a caller
// holding a stale copy gets ErrStaleMessage instead of overwriting a
// concurrent transition.
type MessageStore interface {
	// Create inserts msg with version 1. It fails with ErrDuplicateMessage,
	// leaving the stored row untouched, when the id already exists.
	Create(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, id string) (*models.Message, error)
	// Update persists msg. An UNTRUSTED message that now carries an origin is
	// promoted to QUEUED in the same write. On success msg.Version and
	// msg.UpdatedAt reflect the stored row.
	Update(ctx context.Context, msg *models.Message) error

	// FindOldestToProcess returns QUEUED messages with fewer than maxAttempts
	// attempts whose soft floor (queue timeout) has passed, oldest first.
	FindOldestToProcess(ctx context.Context, maxAttempts, limit int) ([]*models.Message, error)
	// FindNeedingReprocess returns QUEUED messages that were attempted before,
	// ordered by their last attempt.
	FindNeedingReprocess(ctx context.Context, limit int) ([]*models.Message, error)
	// FindStalledInProcessing returns PROCESSING messages whose deadline has
	// elapsed.
	FindStalledInProcessing(ctx context.Context) ([]*models.Message, error)
	FindByRelatedObject(ctx context.Context, objectRef, activityStreamType string) ([]*models.Message, error)
	// FindReplies returns messages replying to inReplyTo that concern
	// objectRef and whose activity stream type is one of types, compared
	// case-insensitively.
	FindReplies(ctx context.Context, inReplyTo, objectRef string, types []string) ([]*models.Message, error)

	List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
	CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error)
}

type OriginRepository interface {
	CreateOrigin(ctx context.Context, origin *models.OriginService) error
	GetOrigin(ctx context.Context, id string) (*models.OriginService, error)
	FindOriginByInboxURL(ctx context.Context, inboxURL string) (*models.OriginService, error)
	ListOrigins(ctx context.Context) ([]*models.OriginService, error)
	UpdateOrigin(ctx context.Context, origin *models.OriginService) error
	DeleteOrigin(ctx context.Context, id string) error
}

type Store interface {
	MessageStore
	OriginRepository
	Ping(ctx context.Context) error
	Close() error
}

type options struct {
	clock func() time.Time
}

type Option func(*options)

// WithClock replaces time.Now for timestamps and deadline comparisons.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// promoteIfRecognized is the single exit from UNTRUSTED.
func promoteIfRecognized(msg *models.Message) {
	if msg.QueueStatus == models.StatusUntrusted && msg.OriginRef != "" {
		msg.QueueStatus = models.StatusQueued
	}
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
