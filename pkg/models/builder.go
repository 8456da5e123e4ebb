package models

import "time"

type MessageBuilder struct {
	msg *Message
}

func NewMessageBuilder(id string) *MessageBuilder {
	return &MessageBuilder{
		msg: &Message{
			ID:          id,
			QueueStatus: StatusQueued,
		},
	}
}

func (b *MessageBuilder) WithTypes(activityStreamType, notifyType string) *MessageBuilder {
	b.msg.ActivityStreamType = activityStreamType
	b.msg.NotifyType = notifyType
	return b
}

func (b *MessageBuilder) WithStatus(status QueueStatus) *MessageBuilder {
	b.msg.QueueStatus = status
	return b
}

func (b *MessageBuilder) WithAttempts(attempts int) *MessageBuilder {
	b.msg.QueueAttempts = attempts
	return b
}

func (b *MessageBuilder) WithObject(objectRef string) *MessageBuilder {
	b.msg.ObjectRef = objectRef
	return b
}

func (b *MessageBuilder) WithContext(contextRef string) *MessageBuilder {
	b.msg.ContextRef = contextRef
	return b
}

func (b *MessageBuilder) WithOrigin(originRef string) *MessageBuilder {
	b.msg.OriginRef = originRef
	return b
}

func (b *MessageBuilder) InReplyTo(messageID string) *MessageBuilder {
	b.msg.InReplyToRef = messageID
	return b
}

func (b *MessageBuilder) WithPayload(raw []byte) *MessageBuilder {
	b.msg.RawPayload = raw
	return b
}

func (b *MessageBuilder) WithSourceIP(ip string) *MessageBuilder {
	b.msg.SourceIP = ip
	return b
}

func (b *MessageBuilder) WithTimeout(t time.Time) *MessageBuilder {
	b.msg.QueueTimeout = &t
	return b
}

func (b *MessageBuilder) WithLastStart(t time.Time) *MessageBuilder {
	b.msg.QueueLastStartTime = &t
	return b
}

func (b *MessageBuilder) CreatedAt(t time.Time) *MessageBuilder {
	b.msg.CreatedAt = t
	return b
}

func (b *MessageBuilder) Build() *Message {
	if b.msg.CreatedAt.IsZero() {
		b.msg.CreatedAt = time.Now().UTC()
	}
	if b.msg.UpdatedAt.IsZero() {
		b.msg.UpdatedAt = b.msg.CreatedAt
	}
	return b.msg
}
