package requeststatus

import (
	"context"
	"strings"

	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/store"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

const (
	typeOffer           = "Offer"
	typeAccept          = "Accept"
	typeTentativeAccept = "TentativeAccept"
	typeTentativeReject = "TentativeReject"
	typeAnnounce        = "Announce"
)

var replyTypes = []string{typeAccept, typeTentativeReject, typeTentativeAccept, typeAnnounce}

type Store interface {
	FindByRelatedObject(ctx context.Context, objectRef, activityStreamType string) ([]*models.Message, error)
	FindReplies(ctx context.Context, inReplyTo, objectRef string, types []string) ([]*models.Message, error)
	GetOrigin(ctx context.Context, id string) (*models.OriginService, error)
}

var _ Store = (store.Store)(nil)

// Resolver reconstructs the outcome of every Offer conversation about an
// object from the stored reply chain. It never writes.
type Resolver struct {
	store  Store
	logger logger.Logger
}

func NewResolver(st Store, log logger.Logger) *Resolver {
	return &Resolver{store: st, logger: log}
}

// Resolve returns one status per Offer concerning objectRef, leaving out
// offers that have been announced.
func (r *Resolver) Resolve(ctx context.Context, objectRef string) ([]models.RequestStatus, error) {
	offers, err := r.store.FindByRelatedObject(ctx, objectRef, typeOffer)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.RequestStatus, 0, len(offers))
	for _, offer := range offers {
		replies, err := r.store.FindReplies(ctx, offer.ID, objectRef, replyTypes)
		if err != nil {
			return nil, err
		}

		outcome, settled := Outcome(replies)
		if settled {
			continue
		}

		status := models.RequestStatus{
			ServiceName: constants.UnknownService,
			OfferType:   offer.NotifyType,
			Outcome:     outcome,
			OfferID:     offer.ID,
		}
		if offer.OriginRef != "" {
			origin, err := r.store.GetOrigin(ctx, offer.OriginRef)
			switch {
			case err == nil:
				status.ServiceName = origin.Name
				status.ServiceURL = origin.URL
			case pkgerrors.IsNotFound(err):
				r.logger.DebugwCtx(ctx, "Offer origin no longer registered",
					"offer_id", offer.ID,
					"origin_ref", offer.OriginRef,
				)
			default:
				return nil, err
			}
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// Outcome applies the reply precedence: an Announce settles the offer,
// acceptance beats rejection, and no decisive reply means still requested.
func Outcome(replies []*models.Message) (outcome models.RequestOutcome, settled bool) {
	var accepted, rejected bool
	for _, reply := range replies {
		switch {
		case strings.EqualFold(reply.ActivityStreamType, typeAnnounce):
			return "", true
		case strings.EqualFold(reply.ActivityStreamType, typeAccept),
			strings.EqualFold(reply.ActivityStreamType, typeTentativeAccept):
			accepted = true
		case strings.EqualFold(reply.ActivityStreamType, typeTentativeReject):
			rejected = true
		}
	}

	switch {
	case accepted:
		return models.OutcomeAccepted, false
	case rejected:
		return models.OutcomeRejected, false
	}
	return models.OutcomeRequested, false
}
