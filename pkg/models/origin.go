package models

import "time"

// OriginService is a registered sender. InboxURL is the key a claimed origin
// is resolved by.
type OriginService struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	URL              string          `json:"url,omitempty"`
	InboxURL         string          `json:"inbox_url"`
	IPLowerBound     string          `json:"ip_lower_bound,omitempty"`
	IPUpperBound     string          `json:"ip_upper_bound,omitempty"`
	Enabled          bool            `json:"enabled"`
	Score            *float64        `json:"score,omitempty"`
	InboundPatterns  []NotifyPattern `json:"inbound_patterns"`
	OutboundPatterns []NotifyPattern `json:"outbound_patterns"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NotifyPattern declares a notification type the service exchanges, e.g.
// "request-review", and whether it is applied without manual approval.
type NotifyPattern struct {
	Pattern    string `json:"pattern"`
	Constraint string `json:"constraint,omitempty"`
	Automatic  bool   `json:"automatic"`
}
