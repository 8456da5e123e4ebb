package trust

import (
	"context"
	"strings"

	"ldn/internal/config"
	"ldn/internal/logger"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

const offerType = "Offer"

// OriginLookup resolves a claimed origin inbox URL to a registered service.
// Implementations return an ErrNotFound-coded error when nothing matches.
type OriginLookup interface {
	FindOriginByInboxURL(ctx context.Context, inboxURL string) (*models.OriginService, error)
}

type Classification struct {
	Origin *models.OriginService
	Status models.QueueStatus
}

func (c Classification) OriginRef() string {
	if c.Origin == nil {
		return ""
	}
	return c.Origin.ID
}

type Evaluator struct {
	origins  OriginLookup
	settings config.QueueSettingsProvider
	logger   logger.Logger
}

func NewEvaluator(origins OriginLookup, settings config.QueueSettingsProvider, log logger.Logger) *Evaluator {
	return &Evaluator{
		origins:  origins,
		settings: settings,
		logger:   log,
	}
}

// Classify decides the initial queue status of msg. An unknown sender is only
// tolerated for Offers; a known sender outside its registered address range is
// held as UNTRUSTED_IP while range enforcement is on.
func (e *Evaluator) Classify(ctx context.Context, msg *models.Message, claimedOriginURL, sourceIP string) (Classification, error) {
	origin, err := e.ResolveOrigin(ctx, claimedOriginURL)
	if err != nil {
		return Classification{}, err
	}

	if origin == nil {
		if !strings.EqualFold(msg.ActivityStreamType, offerType) {
			e.logger.InfowCtx(ctx, "Notification from unknown origin",
				"claimed_origin", claimedOriginURL,
				"activity_stream_type", msg.ActivityStreamType,
			)
			return Classification{Status: models.StatusUntrusted}, nil
		}
		return Classification{Status: models.StatusQueued}, nil
	}

	if e.settings.QueueSettings().IPRangeEnforcementEnabled &&
		!IsInRange(sourceIP, origin.IPLowerBound, origin.IPUpperBound) {
		e.logger.WarnwCtx(ctx, "Source address outside origin range",
			"origin", origin.Name,
			"source_ip", sourceIP,
			"ip_lower_bound", origin.IPLowerBound,
			"ip_upper_bound", origin.IPUpperBound,
		)
		return Classification{Origin: origin, Status: models.StatusUntrustedIP}, nil
	}

	return Classification{Origin: origin, Status: models.StatusQueued}, nil
}

// ResolveOrigin returns the enabled origin registered under inboxURL, or nil.
func (e *Evaluator) ResolveOrigin(ctx context.Context, inboxURL string) (*models.OriginService, error) {
	if strings.TrimSpace(inboxURL) == "" {
		return nil, nil
	}

	origin, err := e.origins.FindOriginByInboxURL(ctx, inboxURL)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if origin == nil || !origin.Enabled {
		return nil, nil
	}
	return origin, nil
}
