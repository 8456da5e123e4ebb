package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

// MemoryStore keeps everything in process. It honours the same version and
// promotion rules as the SQL stores and backs the memory driver and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     options
	messages map[string]*models.Message
	seq      map[string]int64
	next     int64
	origins  map[string]*models.OriginService
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:     buildOptions(opts),
		messages: make(map[string]*models.Message),
		seq:      make(map[string]int64),
		origins:  make(map[string]*models.OriginService),
	}
}

func (s *MemoryStore) Create(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.ID]; exists {
		return duplicateMessage(msg.ID, nil)
	}

	now := s.opts.clock().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	msg.Version = 1

	s.next++
	s.seq[msg.ID] = s.next
	s.messages[msg.ID] = msg.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, messageNotFound(id)
	}
	return msg.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.messages[msg.ID]
	if !ok {
		return messageNotFound(msg.ID)
	}
	if current.Version != msg.Version {
		return staleMessage(msg.ID)
	}

	promoteIfRecognized(msg)

	stored := msg.Clone()
	stored.RawPayload = current.RawPayload
	stored.SourceIP = current.SourceIP
	stored.CreatedAt = current.CreatedAt
	stored.Version = current.Version + 1
	stored.UpdatedAt = s.opts.clock().UTC()
	s.messages[msg.ID] = stored

	msg.Version = stored.Version
	msg.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryStore) FindOldestToProcess(_ context.Context, maxAttempts, limit int) ([]*models.Message, error) {
	now := s.opts.clock()
	return s.query(func(m *models.Message) bool {
		return m.QueueStatus == models.StatusQueued &&
			m.QueueAttempts < maxAttempts &&
			(m.QueueTimeout == nil || !m.QueueTimeout.After(now))
	}, s.byCreated, limitOrDefault(limit)), nil
}

func (s *MemoryStore) FindNeedingReprocess(_ context.Context, limit int) ([]*models.Message, error) {
	now := s.opts.clock()
	return s.query(func(m *models.Message) bool {
		return m.QueueStatus == models.StatusQueued &&
			m.QueueAttempts > 0 &&
			(m.QueueTimeout == nil || !m.QueueTimeout.After(now))
	}, s.byLastStart, limitOrDefault(limit)), nil
}

func (s *MemoryStore) FindStalledInProcessing(_ context.Context) ([]*models.Message, error) {
	now := s.opts.clock()
	return s.query(func(m *models.Message) bool {
		return m.QueueStatus == models.StatusProcessing &&
			m.QueueTimeout != nil &&
			m.QueueTimeout.Before(now)
	}, s.byCreated, 0), nil
}

func (s *MemoryStore) FindByRelatedObject(_ context.Context, objectRef, activityStreamType string) ([]*models.Message, error) {
	return s.query(func(m *models.Message) bool {
		return m.ObjectRef == objectRef && strings.EqualFold(m.ActivityStreamType, activityStreamType)
	}, s.byCreated, 0), nil
}

func (s *MemoryStore) FindReplies(_ context.Context, inReplyTo, objectRef string, types []string) ([]*models.Message, error) {
	wanted := make(map[string]struct{}, len(types))
	for _, t := range lowerAll(types) {
		wanted[t] = struct{}{}
	}
	return s.query(func(m *models.Message) bool {
		if m.InReplyToRef != inReplyTo || m.ObjectRef != objectRef {
			return false
		}
		_, ok := wanted[strings.ToLower(m.ActivityStreamType)]
		return ok
	}, s.byCreated, 0), nil
}

func (s *MemoryStore) List(_ context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	newestFirst := func(a, b *models.Message) bool { return s.byCreated(b, a) }
	return s.query(func(m *models.Message) bool {
		return filter.Status == "" || m.QueueStatus == filter.Status
	}, newestFirst, limitOrDefault(filter.Limit)), nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[models.QueueStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.QueueStatus]int)
	for _, m := range s.messages {
		counts[m.QueueStatus]++
	}
	return counts, nil
}

func (s *MemoryStore) byCreated(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return s.seq[a.ID] < s.seq[b.ID]
}

func (s *MemoryStore) byLastStart(a, b *models.Message) bool {
	at, bt := a.CreatedAt, b.CreatedAt
	if a.QueueLastStartTime != nil {
		at = *a.QueueLastStartTime
	}
	if b.QueueLastStartTime != nil {
		bt = *b.QueueLastStartTime
	}
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return s.byCreated(a, b)
}

func (s *MemoryStore) query(match func(*models.Message) bool, less func(a, b *models.Message) bool, limit int) []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Message
	for _, m := range s.messages {
		if match(m) {
			out = append(out, m.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) CreateOrigin(_ context.Context, origin *models.OriginService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.origins {
		if o.InboxURL == origin.InboxURL {
			return duplicateInbox(origin.InboxURL, nil)
		}
	}

	if origin.ID == "" {
		origin.ID = uuid.New().String()
	}
	now := s.opts.clock().UTC()
	origin.CreatedAt = now
	origin.UpdatedAt = now

	c := *origin
	s.origins[origin.ID] = &c
	return nil
}

func (s *MemoryStore) GetOrigin(_ context.Context, id string) (*models.OriginService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.origins[id]
	if !ok {
		return nil, originNotFound(id)
	}
	c := *o
	return &c, nil
}

func (s *MemoryStore) FindOriginByInboxURL(_ context.Context, inboxURL string) (*models.OriginService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.origins {
		if o.InboxURL == inboxURL {
			c := *o
			return &c, nil
		}
	}
	return nil, originNotFound(inboxURL)
}

func (s *MemoryStore) ListOrigins(_ context.Context) ([]*models.OriginService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.OriginService, 0, len(s.origins))
	for _, o := range s.origins {
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateOrigin(_ context.Context, origin *models.OriginService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.origins[origin.ID]
	if !ok {
		return originNotFound(origin.ID)
	}
	for id, o := range s.origins {
		if id != origin.ID && o.InboxURL == origin.InboxURL {
			return duplicateInbox(origin.InboxURL, nil)
		}
	}

	origin.CreatedAt = current.CreatedAt
	origin.UpdatedAt = s.opts.clock().UTC()
	c := *origin
	s.origins[origin.ID] = &c
	return nil
}

func (s *MemoryStore) DeleteOrigin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.origins[id]; !ok {
		return originNotFound(id)
	}
	delete(s.origins, id)

	for _, m := range s.messages {
		if m.OriginRef == id {
			m.OriginRef = ""
		}
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func messageNotFound(id string) error {
	return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("message %s not found", id))
}

func originNotFound(key string) error {
	return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("origin service %s not found", key))
}

func duplicateMessage(id string, cause error) error {
	err := pkgerrors.ErrDuplicateMessage.WithDetail("message_id", id)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

func staleMessage(id string) error {
	return pkgerrors.ErrStaleMessage.WithDetail("message_id", id)
}

func duplicateInbox(inboxURL string, cause error) error {
	err := pkgerrors.ErrConflict.WithDetail("message", fmt.Sprintf("origin service with inbox '%s' already exists", inboxURL))
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

func storeUnavailable(op string, err error) error {
	return pkgerrors.ErrStoreUnavailable.WithCause(err).WithDetail("operation", op)
}
