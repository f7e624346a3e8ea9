package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatlinehq/chatline/internal/apperr"
)

// Store defines the persistence operations conversation routing needs.
type Store interface {
	FindOrCreateActive(ctx context.Context, target Target) (Conversation, bool, error)
	Claim(ctx context.Context, id, agentID string) (Conversation, bool, error)
	Close(ctx context.Context, id string) (Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	List(ctx context.Context, filter ListFilter) ([]Conversation, error)
}

// Service routes messages to conversations and manages their lifecycle.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// Route returns the active conversation for a target, creating one when no
// pending or open conversation exists.
func (s *Service) Route(ctx context.Context, target Target) (Conversation, error) {
	if strings.TrimSpace(target.TenantID) == "" {
		return Conversation{}, apperr.Validation("tenant id is required")
	}
	conv, created, err := s.store.FindOrCreateActive(ctx, target)
	if err != nil {
		return Conversation{}, apperr.Internal("route conversation", err)
	}
	if created {
		s.logger.Info("conversation created",
			slog.String("conversation_id", conv.ID),
			slog.String("tenant_id", conv.TenantID),
		)
	}
	return conv, nil
}

// Claim assigns the conversation to an agent. Exactly one concurrent caller
// wins; everyone else observes the winner's assignment. A closed or missing
// conversation is reported as not found.
func (s *Service) Claim(ctx context.Context, id, agentID string) (Conversation, bool, error) {
	conv, won, err := s.store.Claim(ctx, id, agentID)
	if err != nil {
		return Conversation{}, false, apperr.Internal("claim conversation", err)
	}
	if won {
		s.logger.Info("conversation claimed",
			slog.String("conversation_id", conv.ID),
			slog.String("agent_id", agentID),
		)
		return conv, true, nil
	}

	// Lost the race, or the conversation is gone. Fetch to tell which.
	conv, err = s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Conversation{}, false, apperr.NotFound("conversation not found")
		}
		return Conversation{}, false, apperr.Internal("get conversation", err)
	}
	if !conv.Active() {
		return Conversation{}, false, apperr.NotFound("conversation is closed")
	}
	if conv.AssignedAgentID == agentID {
		return conv, true, nil
	}
	return conv, false, nil
}

// Close ends an active conversation. A later message from the same target
// starts a fresh one.
func (s *Service) Close(ctx context.Context, id string) (Conversation, error) {
	conv, err := s.store.Close(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Conversation{}, apperr.NotFound("conversation not found or already closed")
		}
		return Conversation{}, apperr.Internal("close conversation", err)
	}
	s.logger.Info("conversation closed", slog.String("conversation_id", conv.ID))
	return conv, nil
}

// Get fetches a conversation by id.
func (s *Service) Get(ctx context.Context, id string) (Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Conversation{}, apperr.NotFound("conversation not found")
		}
		return Conversation{}, apperr.Internal("get conversation", err)
	}
	return conv, nil
}

// List returns a tenant's conversations for the agent inbox.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Conversation, error) {
	if filter.Status != "" &&
		filter.Status != StatusPending && filter.Status != StatusOpen && filter.Status != StatusClosed {
		return nil, apperr.Validation(fmt.Sprintf("unknown status filter %q", filter.Status))
	}
	convs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("list conversations", err)
	}
	return convs, nil
}
