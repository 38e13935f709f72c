package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/services/registry"
)

// ChatMessage is one exchange entry shown in the conversation view
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Service routes user chat messages to the active provider with the
// current file set as context. History is session-scoped and in-memory.
type Service struct {
	ai       interfaces.AIService
	registry *registry.Service
	logger   arbor.ILogger

	mu      sync.Mutex
	history []ChatMessage
}

func NewService(ai interfaces.AIService, reg *registry.Service, logger arbor.ILogger) *Service {
	return &Service{
		ai:       ai,
		registry: reg,
		logger:   logger,
	}
}

// Send forwards a user message to the active provider and records both
// sides of the exchange
func (s *Service) Send(ctx context.Context, message string) (ChatMessage, error) {
	if message == "" {
		return ChatMessage{}, fmt.Errorf("message is empty")
	}

	fileContext := s.registry.Projection()

	s.logger.Debug().
		Int("context_files", len(fileContext)).
		Msg("Sending chat message")

	reply, err := s.ai.HandleUserMessage(ctx, message, fileContext)
	if err != nil {
		return ChatMessage{}, err
	}

	now := time.Now()
	assistant := ChatMessage{Role: "assistant", Content: reply, Timestamp: now}

	s.mu.Lock()
	s.history = append(s.history,
		ChatMessage{Role: "user", Content: message, Timestamp: now},
		assistant,
	)
	s.mu.Unlock()

	return assistant, nil
}

// History returns a copy of the conversation so far
func (s *Service) History() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Clear discards the conversation history
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
