package management

import (
	"time"

	"ldn/pkg/models"
)

type CreateOriginRequest struct {
	Name             string                 `json:"name" binding:"required"`
	Description      string                 `json:"description"`
	URL              string                 `json:"url"`
	InboxURL         string                 `json:"inbox_url" binding:"required"`
	IPLowerBound     string                 `json:"ip_lower_bound"`
	IPUpperBound     string                 `json:"ip_upper_bound"`
	Enabled          *bool                  `json:"enabled"`
	Score            *float64               `json:"score"`
	InboundPatterns  []models.NotifyPattern `json:"inbound_patterns"`
	OutboundPatterns []models.NotifyPattern `json:"outbound_patterns"`
}

type UpdateOriginRequest struct {
	Name             *string                 `json:"name"`
	Description      *string                 `json:"description"`
	URL              *string                 `json:"url"`
	InboxURL         *string                 `json:"inbox_url"`
	IPLowerBound     *string                 `json:"ip_lower_bound"`
	IPUpperBound     *string                 `json:"ip_upper_bound"`
	Enabled          *bool                   `json:"enabled"`
	Score            *float64                `json:"score"`
	InboundPatterns  *[]models.NotifyPattern `json:"inbound_patterns"`
	OutboundPatterns *[]models.NotifyPattern `json:"outbound_patterns"`
}

// Actor identifies who made an administrative change.
type Actor struct {
	ChangedBy string
	IPAddress string
}

type AuditLog struct {
	ID        string                 `json:"id"`
	OriginID  string                 `json:"origin_id,omitempty"`
	Action    string                 `json:"action"`
	OldValue  map[string]interface{} `json:"old_value,omitempty"`
	NewValue  map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy string                 `json:"changed_by"`
	IPAddress string                 `json:"ip_address,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// OriginEvent is published whenever the origin registry changes so that other
// instances can drop anything they derived from the old entry.
type OriginEvent struct {
	EventType string    `json:"event_type"`
	OriginID  string    `json:"origin_id"`
	InboxURL  string    `json:"inbox_url,omitempty"`
	Action    string    `json:"action"`
	Enabled   bool      `json:"enabled"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

type QueueStats struct {
	Counts map[models.QueueStatus]int `json:"counts"`
	Total  int                        `json:"total"`
}

type DrainResponse struct {
	ProcessedCount int `json:"processed_count"`
	NoHandlerCount int `json:"no_handler_count"`
}

type SweepResponse struct {
	Swept int `json:"swept"`
}
