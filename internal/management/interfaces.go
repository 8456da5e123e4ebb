package management

import (
	"context"

	"ldn/internal/processor"
	"ldn/pkg/models"
)

type Service interface {
	CreateOrigin(ctx context.Context, req CreateOriginRequest, actor Actor) (*models.OriginService, error)
	ListOrigins(ctx context.Context) ([]*models.OriginService, error)
	GetOrigin(ctx context.Context, id string) (*models.OriginService, error)
	UpdateOrigin(ctx context.Context, id string, req UpdateOriginRequest, actor Actor) (*models.OriginService, error)
	DeleteOrigin(ctx context.Context, id string, actor Actor) error
	ToggleOrigin(ctx context.Context, id string, actor Actor) (*models.OriginService, error)
	GetAuditLogs(ctx context.Context, originID string, limit int) ([]AuditLog, error)

	ListMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	RequeueMessage(ctx context.Context, id string) (*models.Message, error)
	RetrustMessage(ctx context.Context, id string) (*models.Message, error)
	QueueStats(ctx context.Context) (*QueueStats, error)
	Drain(ctx context.Context) (processor.DrainResult, error)
	Sweep(ctx context.Context) (int, error)

	RequestStatus(ctx context.Context, objectRef string) ([]models.RequestStatus, error)
}

// QueueRunner runs scheduler passes on demand.
type QueueRunner interface {
	DrainTick(ctx context.Context) processor.DrainResult
	SweepTick(ctx context.Context) int
}

// StatusResolver derives request outcomes for a repository object.
type StatusResolver interface {
	Resolve(ctx context.Context, objectRef string) ([]models.RequestStatus, error)
}

// Classifier re-runs the trust decision for a stored message.
type Classifier interface {
	Retrust(ctx context.Context, msg *models.Message) error
}
