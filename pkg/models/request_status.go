package models

type RequestOutcome string

const (
	OutcomeRequested RequestOutcome = "REQUESTED"
	OutcomeAccepted  RequestOutcome = "ACCEPTED"
	OutcomeRejected  RequestOutcome = "REJECTED"
)

// RequestStatus is the reconstructed state of one Offer conversation
// addressed to a repository object.
type RequestStatus struct {
	ServiceName string         `json:"service_name"`
	ServiceURL  string         `json:"service_url"`
	OfferType   string         `json:"offer_type"`
	Outcome     RequestOutcome `json:"outcome"`
	OfferID     string         `json:"offer_id"`
}
