package observer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/nao1215/socialmark/internal/model"
)

// Handler receives events published for the topics it is subscribed to.
// Implementations must be comparable (typically pointers) so that
// Unsubscribe can find them again.
type Handler interface {
	Observe(ctx context.Context, topic model.Topic, ev *model.Event)
}

// Hub routes published events to subscribed handlers.
type Hub struct {
	mu       sync.RWMutex
	handlers map[model.Topic][]Handler
	logger   *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets a custom logger for the hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		handlers: make(map[model.Topic][]Handler),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers handler for topic. Subscribing the same handler
// twice to one topic has no effect.
func (h *Hub) Subscribe(topic model.Topic, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if slices.Contains(h.handlers[topic], handler) {
		return
	}
	h.handlers[topic] = append(h.handlers[topic], handler)
}

// Unsubscribe removes handler from topic. It reports whether the handler
// was subscribed.
func (h *Hub) Unsubscribe(topic model.Topic, handler Handler) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	handlers := h.handlers[topic]
	i := slices.Index(handlers, handler)
	if i < 0 {
		return false
	}

	// Copy so that a Publish iterating the old slice is unaffected.
	h.handlers[topic] = slices.Delete(slices.Clone(handlers), i, i+1)
	if len(h.handlers[topic]) == 0 {
		delete(h.handlers, topic)
	}
	return true
}

// Subscribers returns the number of handlers subscribed to topic.
func (h *Hub) Subscribers(topic model.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[topic])
}

// Publish delivers ev to every handler subscribed to topic and returns
// how many were notified. A panicking handler is logged and does not
// prevent delivery to the others.
func (h *Hub) Publish(ctx context.Context, topic model.Topic, ev *model.Event) int {
	h.mu.RLock()
	handlers := h.handlers[topic]
	h.mu.RUnlock()

	for _, handler := range handlers {
		h.deliver(ctx, topic, ev, handler)
	}
	return len(handlers)
}

func (h *Hub) deliver(ctx context.Context, topic model.Topic, ev *model.Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("observer panicked",
				"topic", string(topic),
				"handler", fmt.Sprintf("%T", handler),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	handler.Observe(ctx, topic, ev)
}
