// Package compose sends agent-authored messages out through the channel
// provider and records them.
package compose

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/identity"
	"github.com/chatlinehq/chatline/internal/instance"
	"github.com/chatlinehq/chatline/internal/message"
	"github.com/chatlinehq/chatline/internal/webhook"
)

// InstanceRegistry resolves instances by name.
type InstanceRegistry interface {
	GetByName(ctx context.Context, name string) (instance.Instance, error)
}

// ContactResolver upserts the contact a message is sent to.
type ContactResolver interface {
	ResolveContact(ctx context.Context, tenantID, instanceName, remoteJID, pushName string) (identity.Contact, error)
}

// Router finds or creates the active conversation for a target.
type Router interface {
	Route(ctx context.Context, target conversation.Target) (conversation.Conversation, error)
}

// Sender delivers a text through the channel provider.
type Sender interface {
	SendText(ctx context.Context, instanceName, remoteJID, text string) (string, error)
}

// Appender persists messages idempotently.
type Appender interface {
	Append(ctx context.Context, in message.AppendInput) (message.AppendOutcome, error)
}

// SendInput is one agent-authored outbound text.
type SendInput struct {
	InstanceName string
	RemoteJID    string
	Body         string
	AgentID      string
}

// SendResult reports where the message landed.
type SendResult struct {
	Conversation conversation.Conversation
	Message      message.Message
	ExternalID   string
}

// Service handles outbound sends.
type Service struct {
	instances  InstanceRegistry
	identities ContactResolver
	router     Router
	sender     Sender
	messages   Appender
	logger     *slog.Logger
}

// NewService creates an outbound compose service.
func NewService(
	log *slog.Logger,
	instances InstanceRegistry,
	identities ContactResolver,
	router Router,
	sender Sender,
	messages Appender,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		instances:  instances,
		identities: identities,
		router:     router,
		sender:     sender,
		messages:   messages,
		logger:     log.With(slog.String("service", "compose")),
	}
}

// Send delivers a text via the provider first, then records it in the
// target's active conversation. A provider failure aborts the send: nothing
// is stored that was never delivered.
func (s *Service) Send(ctx context.Context, in SendInput) (SendResult, error) {
	if strings.TrimSpace(in.Body) == "" {
		return SendResult{}, apperr.Validation("message body is required")
	}

	inst, err := s.instances.GetByName(ctx, in.InstanceName)
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return SendResult{}, apperr.NotFound("unknown instance")
		}
		return SendResult{}, apperr.Internal("resolve instance", err)
	}
	if !inst.Connected() {
		return SendResult{}, apperr.Upstream("instance is disconnected", nil)
	}

	contact, err := s.identities.ResolveContact(ctx, inst.TenantID, inst.Name, in.RemoteJID, "")
	if err != nil {
		return SendResult{}, apperr.Internal("resolve contact", err)
	}

	conv, err := s.router.Route(ctx, conversation.Target{
		TenantID:   inst.TenantID,
		InstanceID: inst.ID,
		ContactID:  contact.ID,
	})
	if err != nil {
		return SendResult{}, err
	}

	externalID, err := s.sender.SendText(ctx, inst.Name, in.RemoteJID, in.Body)
	if err != nil {
		return SendResult{}, apperr.Upstream("provider send failed", err)
	}
	if externalID == "" {
		// Provider accepted but returned no id. Synthesize one so dedup
		// still has a key.
		externalID = uuid.NewString()
	}

	outcome, err := s.messages.Append(ctx, message.AppendInput{
		ConversationID: conv.ID,
		InstanceID:     inst.ID,
		ExternalID:     externalID,
		Direction:      message.DirectionOutbound,
		Kind:           webhook.KindText,
		Body:           in.Body,
		SenderName:     in.AgentID,
	})
	if err != nil {
		return SendResult{}, err
	}

	s.logger.Info("outbound message sent",
		slog.String("conversation_id", conv.ID),
		slog.String("agent_id", in.AgentID),
		slog.String("external_id", externalID),
	)
	return SendResult{
		Conversation: conv,
		Message:      outcome.Message,
		ExternalID:   externalID,
	}, nil
}
