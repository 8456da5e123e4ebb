package models

import (
	"strings"
	"time"
)

type QueueStatus string

const (
	StatusQueued         QueueStatus = "QUEUED"
	StatusProcessing     QueueStatus = "PROCESSING"
	StatusProcessed      QueueStatus = "PROCESSED"
	StatusFailed         QueueStatus = "FAILED"
	StatusUntrusted      QueueStatus = "UNTRUSTED"
	StatusUntrustedIP    QueueStatus = "UNTRUSTED_IP"
	StatusUnmappedAction QueueStatus = "UNMAPPED_ACTION"
)

var AllStatuses = []QueueStatus{
	StatusQueued,
	StatusProcessing,
	StatusProcessed,
	StatusFailed,
	StatusUntrusted,
	StatusUntrustedIP,
	StatusUnmappedAction,
}

func (s QueueStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Requeueable reports whether an operator may push a message in this status
// back to QUEUED.
func (s QueueStatus) Requeueable() bool {
	switch s {
	case StatusFailed, StatusUnmappedAction, StatusUntrustedIP:
		return true
	}
	return false
}

// Message is one received notification and its queue bookkeeping. ObjectRef,
// ContextRef, OriginRef and InReplyToRef are ids of other records, never
// owned values.
type Message struct {
	ID                 string      `json:"id"`
	ObjectRef          string      `json:"object_ref,omitempty"`
	ContextRef         string      `json:"context_ref,omitempty"`
	OriginRef          string      `json:"origin_ref,omitempty"`
	InReplyToRef       string      `json:"in_reply_to_ref,omitempty"`
	RawPayload         []byte      `json:"raw_payload"`
	ActivityStreamType string      `json:"activity_stream_type"`
	NotifyType         string      `json:"notify_type,omitempty"`
	QueueStatus        QueueStatus `json:"queue_status"`
	QueueAttempts      int         `json:"queue_attempts"`
	QueueLastStartTime *time.Time  `json:"queue_last_start_time,omitempty"`
	QueueTimeout       *time.Time  `json:"queue_timeout,omitempty"`
	SourceIP           string      `json:"source_ip,omitempty"`
	Version            int64       `json:"version"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// IsType compares the activity stream type case-insensitively.
func (m *Message) IsType(activityType string) bool {
	return strings.EqualFold(m.ActivityStreamType, activityType)
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.RawPayload != nil {
		c.RawPayload = append([]byte(nil), m.RawPayload...)
	}
	if m.QueueLastStartTime != nil {
		t := *m.QueueLastStartTime
		c.QueueLastStartTime = &t
	}
	if m.QueueTimeout != nil {
		t := *m.QueueTimeout
		c.QueueTimeout = &t
	}
	return &c
}

type MessageFilter struct {
	Status QueueStatus
	Limit  int
}
