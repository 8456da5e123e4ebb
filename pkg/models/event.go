package models

import (
	"encoding/json"
	"time"
)

// QueueEvent is published to the broker whenever a message enters the queue
// or changes status.
type QueueEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	MessageID string          `json:"message_id"`
	Status    QueueStatus     `json:"status"`
	Attempts  int             `json:"attempts"`
	Handler   string          `json:"handler,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Metadata  EventMetadata   `json:"metadata"`
}

type EventMetadata struct {
	TraceID string `json:"trace_id,omitempty"`
	Source  string `json:"source,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

const (
	EventMessageIngested  = "message.ingested"
	EventMessageProcessed = "message.processed"
	EventMessageFailed    = "message.failed"
	EventMessageUnmapped  = "message.unmapped"
	EventMessageRequeued  = "message.requeued"
	EventNotification     = "notification.forwarded"
	EventOriginUpdated    = "origin.updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
)

// EventForStatus maps a terminal processing status to its event type.
func EventForStatus(status QueueStatus) string {
	switch status {
	case StatusProcessed:
		return EventMessageProcessed
	case StatusFailed:
		return EventMessageFailed
	case StatusUnmappedAction:
		return EventMessageUnmapped
	case StatusQueued:
		return EventMessageRequeued
	}
	return ""
}
