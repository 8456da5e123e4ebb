package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	pkgerrors "ldn/pkg/errors"
)

// TypeSet is an ActivityStreams "type" value, which may be serialized either
// as a single string or as an array of strings.
type TypeSet []string

func (t *TypeSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TypeSet{s}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("type must be a string or an array of strings: %w", err)
	}
	*t = list
	return nil
}

func (t TypeSet) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

func (t TypeSet) Contains(v string) bool {
	for _, s := range t {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

type Actor struct {
	ID   string  `json:"id"`
	Name string  `json:"name,omitempty"`
	Type TypeSet `json:"type,omitempty"`
}

// Service is the origin or target of a notification.
type Service struct {
	ID    string  `json:"id"`
	Inbox string  `json:"inbox"`
	Type  TypeSet `json:"type,omitempty"`
}

type Object struct {
	ID     string          `json:"id"`
	CiteAs string          `json:"ietf:cite-as,omitempty"`
	Type   TypeSet         `json:"type,omitempty"`
	Item   json.RawMessage `json:"ietf:item,omitempty"`
}

// Notification is the subset of a COAR Notify / ActivityStreams 2.0 envelope
// the inbox needs for routing and trust.
type Notification struct {
	Context   json.RawMessage `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      TypeSet         `json:"type"`
	Actor     *Actor          `json:"actor,omitempty"`
	Origin    *Service        `json:"origin,omitempty"`
	Target    *Service        `json:"target,omitempty"`
	Object    *Object         `json:"object,omitempty"`
	About     *Object         `json:"context,omitempty"`
	InReplyTo string          `json:"inReplyTo,omitempty"`
	Summary   string          `json:"summary,omitempty"`

	// Raw is the payload Parse decoded, kept for forwarding.
	Raw json.RawMessage `json:"-"`
}

// Parse decodes a raw payload. Any decoding problem, or a payload without an
// id or type, is reported as ErrPayloadMalformed.
func Parse(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, pkgerrors.ErrPayloadMalformed.WithCause(err)
	}

	if strings.TrimSpace(n.ID) == "" {
		return nil, pkgerrors.ErrPayloadMalformed.WithDetail("message", "notification id is required")
	}

	if len(n.Type) == 0 {
		return nil, pkgerrors.ErrPayloadMalformed.WithDetail("message", "notification type is required")
	}

	n.Raw = append(json.RawMessage(nil), raw...)
	return &n, nil
}

// ClassifyTypes sorts the distinct type values lexicographically and returns
// the first as the activity stream type and the second, if any, as the notify
// type.
func ClassifyTypes(types []string) (activityStreamType, notifyType string) {
	seen := make(map[string]struct{}, len(types))
	distinct := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}

	sort.Strings(distinct)

	if len(distinct) > 0 {
		activityStreamType = distinct[0]
	}
	if len(distinct) > 1 {
		notifyType = distinct[1]
	}
	return activityStreamType, notifyType
}

func (n *Notification) Classify() (string, string) {
	return ClassifyTypes(n.Type)
}

// ObjectURL is the URL of the object the notification is about, preferring
// the persistent cite-as identifier when the object id is absent.
func (n *Notification) ObjectURL() string {
	if n.Object == nil {
		return ""
	}
	if n.Object.ID != "" {
		return n.Object.ID
	}
	return n.Object.CiteAs
}

func (n *Notification) ContextURL() string {
	if n.About == nil {
		return ""
	}
	if n.About.ID != "" {
		return n.About.ID
	}
	return n.About.CiteAs
}

func (n *Notification) OriginInbox() string {
	if n.Origin == nil {
		return ""
	}
	return n.Origin.Inbox
}

// PayloadMap decodes raw into a generic map for expression evaluation.
func PayloadMap(raw []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, pkgerrors.ErrPayloadMalformed.WithCause(err)
	}
	return m, nil
}
