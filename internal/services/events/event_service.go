package events

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/interfaces"
)

// Service is an in-process pub/sub dispatcher. Handlers run synchronously
// in Publish order; a slow handler blocks publishers, so handlers that do
// real work should hand off to their own goroutine.
type Service struct {
	logger   arbor.ILogger
	mu       sync.RWMutex
	handlers map[interfaces.EventType][]interfaces.EventHandler
	all      []interfaces.EventHandler
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger:   logger,
		handlers: make(map[interfaces.EventType][]interfaces.EventHandler),
	}
}

// Subscribe registers a handler for one event type. An empty type
// subscribes to every event.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if eventType == "" {
		s.all = append(s.all, handler)
		return
	}
	s.handlers[eventType] = append(s.handlers[eventType], handler)
}

// Publish delivers an event to all matching handlers. Handler errors are
// logged and do not stop delivery to the remaining handlers.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) {
	s.mu.RLock()
	typed := make([]interfaces.EventHandler, len(s.handlers[event.Type]))
	copy(typed, s.handlers[event.Type])
	all := make([]interfaces.EventHandler, len(s.all))
	copy(all, s.all)
	s.mu.RUnlock()

	for _, h := range append(typed, all...) {
		if err := h(ctx, event); err != nil {
			s.logger.Warn().
				Str("event", string(event.Type)).
				Err(err).
				Msg("Event handler failed")
		}
	}
}
