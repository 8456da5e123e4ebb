package router

import (
	"context"
	"sync"

	"ldn/internal/notification"
	"ldn/pkg/models"
)

// Handler applies the effect of one kind of notification. CanHandle must be
// side-effect free; Apply is called at most once per processing attempt.
type Handler interface {
	Name() string
	CanHandle(msg *models.Message) bool
	Apply(ctx context.Context, n *notification.Notification) error
}

// Router picks the first registered handler that accepts a message.
// Registration order is routing order.
type Router struct {
	mu       sync.RWMutex
	handlers []Handler
}

func New(handlers ...Handler) *Router {
	r := &Router{}
	r.Register(handlers...)
	return r
}

func (r *Router) Register(handlers ...Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handlers...)
}

// Route returns nil when no handler accepts msg. That is a normal outcome,
// not an error.
func (r *Router) Route(msg *models.Message) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.CanHandle(msg) {
			return h
		}
	}
	return nil
}

func (r *Router) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Func adapts plain functions to Handler.
type Func struct {
	HandlerName string
	Accepts     func(msg *models.Message) bool
	ApplyFunc   func(ctx context.Context, n *notification.Notification) error
}

func (f Func) Name() string {
	return f.HandlerName
}

func (f Func) CanHandle(msg *models.Message) bool {
	return f.Accepts != nil && f.Accepts(msg)
}

func (f Func) Apply(ctx context.Context, n *notification.Notification) error {
	if f.ApplyFunc == nil {
		return nil
	}
	return f.ApplyFunc(ctx, n)
}
