package management

import (
	"context"
	"encoding/json"
	"errors"

	"ldn/internal/broker"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/processor"
	"ldn/internal/store"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

type service struct {
	store    store.Store
	audit    AuditLogger
	events   *OriginEventProducer
	queue    *broker.EventPublisher
	runner   QueueRunner
	statuses StatusResolver
	trust    Classifier
	logger   logger.Logger
}

type ServiceOption func(*service)

func WithAudit(audit AuditLogger) ServiceOption {
	return func(s *service) {
		s.audit = audit
	}
}

func WithOriginEvents(events *OriginEventProducer) ServiceOption {
	return func(s *service) {
		s.events = events
	}
}

// WithQueueEvents publishes message.requeued when an operator requeues or
// re-trusts a message into QUEUED, so workers drain it without waiting for a
// tick.
func WithQueueEvents(events *broker.EventPublisher) ServiceOption {
	return func(s *service) {
		s.queue = events
	}
}

// WithQueueRunner enables the on-demand drain and sweep endpoints.
func WithQueueRunner(runner QueueRunner) ServiceOption {
	return func(s *service) {
		s.runner = runner
	}
}

func WithClassifier(c Classifier) ServiceOption {
	return func(s *service) {
		s.trust = c
	}
}

func NewService(st store.Store, statuses StatusResolver, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		store:    st,
		statuses: statuses,
		logger:   log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) CreateOrigin(ctx context.Context, req CreateOriginRequest, actor Actor) (*models.OriginService, error) {
	origin := &models.OriginService{
		Name:             req.Name,
		Description:      req.Description,
		URL:              req.URL,
		InboxURL:         req.InboxURL,
		IPLowerBound:     req.IPLowerBound,
		IPUpperBound:     req.IPUpperBound,
		Enabled:          getEnabledValue(req.Enabled),
		Score:            req.Score,
		InboundPatterns:  nonNilPatterns(req.InboundPatterns),
		OutboundPatterns: nonNilPatterns(req.OutboundPatterns),
	}

	if err := ValidateOrigin(origin); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.store.CreateOrigin(ctx, origin); err != nil {
		return nil, asAppError(err)
	}

	s.recordChange(ctx, origin.ID, models.ActionCreate, nil, origin, actor)
	s.publishOriginEvent(ctx, models.ActionCreate, origin, actor)
	return origin, nil
}

func (s *service) ListOrigins(ctx context.Context) ([]*models.OriginService, error) {
	origins, err := s.store.ListOrigins(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	return origins, nil
}

func (s *service) GetOrigin(ctx context.Context, id string) (*models.OriginService, error) {
	origin, err := s.store.GetOrigin(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}
	return origin, nil
}

func (s *service) UpdateOrigin(ctx context.Context, id string, req UpdateOriginRequest, actor Actor) (*models.OriginService, error) {
	origin, err := s.store.GetOrigin(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}

	old := *origin
	updateOriginFields(origin, req)

	if err := ValidateOrigin(origin); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.store.UpdateOrigin(ctx, origin); err != nil {
		return nil, asAppError(err)
	}

	s.recordChange(ctx, origin.ID, models.ActionUpdate, &old, origin, actor)
	s.publishOriginEvent(ctx, models.ActionUpdate, origin, actor)
	return origin, nil
}

func (s *service) DeleteOrigin(ctx context.Context, id string, actor Actor) error {
	origin, err := s.store.GetOrigin(ctx, id)
	if err != nil {
		return asAppError(err)
	}

	if err := s.store.DeleteOrigin(ctx, id); err != nil {
		return asAppError(err)
	}

	s.recordChange(ctx, id, models.ActionDelete, origin, nil, actor)
	s.publishOriginEvent(ctx, models.ActionDelete, origin, actor)
	return nil
}

// ToggleOrigin flips whether the origin takes part in trust resolution.
func (s *service) ToggleOrigin(ctx context.Context, id string, actor Actor) (*models.OriginService, error) {
	origin, err := s.store.GetOrigin(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}

	old := *origin
	origin.Enabled = !origin.Enabled

	if err := s.store.UpdateOrigin(ctx, origin); err != nil {
		return nil, asAppError(err)
	}

	s.recordChange(ctx, origin.ID, models.ActionToggle, &old, origin, actor)
	s.publishOriginEvent(ctx, models.ActionToggle, origin, actor)
	return origin, nil
}

func (s *service) GetAuditLogs(ctx context.Context, originID string, limit int) ([]AuditLog, error) {
	if s.audit == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.audit.List(ctx, originID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) ListMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, pkgerrors.ErrValidation.WithDetail("status", string(filter.Status))
	}
	if filter.Limit <= 0 || filter.Limit > constants.MaxLimit {
		filter.Limit = constants.DefaultLimit
	}
	msgs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, asAppError(err)
	}
	return msgs, nil
}

func (s *service) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}
	return msg, nil
}

// RequeueMessage moves a message out of a parked status back to QUEUED. The
// attempt count is kept; the soft floor is cleared so the next drain may pick
// it up.
func (s *service) RequeueMessage(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}
	if !msg.QueueStatus.Requeueable() {
		return nil, pkgerrors.ErrConflict.WithDetails(map[string]interface{}{
			"message":      "message cannot be requeued from its current status",
			"queue_status": msg.QueueStatus,
		})
	}

	previous := msg.QueueStatus
	msg.QueueStatus = models.StatusQueued
	msg.QueueTimeout = nil

	if err := s.store.Update(ctx, msg); err != nil {
		return nil, asAppError(err)
	}

	s.logger.InfowCtx(ctx, "Message requeued",
		"message_id", msg.ID,
		"previous_status", previous,
		"queue_attempts", msg.QueueAttempts,
	)
	s.queue.Publish(ctx, models.EventMessageRequeued, msg, "", "requeued by operator")
	return msg, nil
}

func (s *service) RetrustMessage(ctx context.Context, id string) (*models.Message, error) {
	if s.trust == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "trust re-evaluation not enabled")
	}

	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}
	if msg.QueueStatus != models.StatusUntrusted && msg.QueueStatus != models.StatusUntrustedIP {
		return nil, pkgerrors.ErrConflict.WithDetails(map[string]interface{}{
			"message":      "only untrusted messages can be re-evaluated",
			"queue_status": msg.QueueStatus,
		})
	}

	if err := s.trust.Retrust(ctx, msg); err != nil {
		return nil, asAppError(err)
	}
	if err := s.store.Update(ctx, msg); err != nil {
		return nil, asAppError(err)
	}
	if msg.QueueStatus == models.StatusQueued {
		s.queue.Publish(ctx, models.EventMessageRequeued, msg, "", "origin trusted")
	}
	return msg, nil
}

func (s *service) QueueStats(ctx context.Context) (*QueueStats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, asAppError(err)
	}

	stats := &QueueStats{Counts: make(map[models.QueueStatus]int, len(models.AllStatuses))}
	for _, status := range models.AllStatuses {
		stats.Counts[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

func (s *service) Drain(ctx context.Context) (processor.DrainResult, error) {
	if s.runner == nil {
		return processor.DrainResult{}, pkgerrors.ErrServiceUnavailable.WithDetail("message", "queue runner not configured")
	}
	return s.runner.DrainTick(ctx), nil
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	if s.runner == nil {
		return 0, pkgerrors.ErrServiceUnavailable.WithDetail("message", "queue runner not configured")
	}
	return s.runner.SweepTick(ctx), nil
}

func (s *service) RequestStatus(ctx context.Context, objectRef string) ([]models.RequestStatus, error) {
	if objectRef == "" {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "object is required")
	}
	statuses, err := s.statuses.Resolve(ctx, objectRef)
	if err != nil {
		return nil, asAppError(err)
	}
	return statuses, nil
}

func (s *service) recordChange(ctx context.Context, originID, action string, oldValue, newValue *models.OriginService, actor Actor) {
	if s.audit == nil {
		return
	}
	entry := AuditLog{
		OriginID:  originID,
		Action:    action,
		OldValue:  originToMap(oldValue),
		NewValue:  originToMap(newValue),
		ChangedBy: actor.ChangedBy,
		IPAddress: actor.IPAddress,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to record audit entry",
			"error", err,
			"origin_id", originID,
			"action", action,
		)
	}
}

func (s *service) publishOriginEvent(ctx context.Context, action string, origin *models.OriginService, actor Actor) {
	if err := s.events.PublishOriginEvent(ctx, action, origin, actor.ChangedBy); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish origin event",
			"error", err,
			"origin_id", origin.ID,
			"action", action,
		)
	}
}

func updateOriginFields(origin *models.OriginService, req UpdateOriginRequest) {
	if req.Name != nil {
		origin.Name = *req.Name
	}
	if req.Description != nil {
		origin.Description = *req.Description
	}
	if req.URL != nil {
		origin.URL = *req.URL
	}
	if req.InboxURL != nil {
		origin.InboxURL = *req.InboxURL
	}
	if req.IPLowerBound != nil {
		origin.IPLowerBound = *req.IPLowerBound
	}
	if req.IPUpperBound != nil {
		origin.IPUpperBound = *req.IPUpperBound
	}
	if req.Enabled != nil {
		origin.Enabled = *req.Enabled
	}
	if req.Score != nil {
		origin.Score = req.Score
	}
	if req.InboundPatterns != nil {
		origin.InboundPatterns = nonNilPatterns(*req.InboundPatterns)
	}
	if req.OutboundPatterns != nil {
		origin.OutboundPatterns = nonNilPatterns(*req.OutboundPatterns)
	}
}

func originToMap(origin *models.OriginService) map[string]interface{} {
	if origin == nil {
		return nil
	}
	data, err := json.Marshal(origin)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// asAppError passes application errors from the store through unchanged and
// wraps anything else as internal.
func asAppError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func getEnabledValue(enabled *bool) bool {
	if enabled == nil {
		return true
	}
	return *enabled
}

func nonNilPatterns(p []models.NotifyPattern) []models.NotifyPattern {
	if p == nil {
		return []models.NotifyPattern{}
	}
	return p
}
