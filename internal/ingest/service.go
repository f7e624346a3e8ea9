// Package ingest orchestrates one webhook delivery end to end: normalize,
// authenticate, resolve identities, route, resolve media, persist.
package ingest

import (
	"context"
	"log/slog"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/identity"
	"github.com/chatlinehq/chatline/internal/media"
	"github.com/chatlinehq/chatline/internal/message"
	"github.com/chatlinehq/chatline/internal/webhook"
)

// Normalizer parses and classifies raw webhook bodies.
type Normalizer interface {
	Normalize(ctx context.Context, body []byte) (webhook.Result, error)
}

// IdentityResolver upserts the identities behind an inbound message.
type IdentityResolver interface {
	Resolve(ctx context.Context, in identity.ResolveInput) (identity.Resolved, error)
}

// Router finds or creates the active conversation for a target.
type Router interface {
	Route(ctx context.Context, target conversation.Target) (conversation.Conversation, error)
}

// MediaResolver turns attached media into a stored URL.
type MediaResolver interface {
	Resolve(ctx context.Context, in media.Input) string
}

// Appender persists messages idempotently.
type Appender interface {
	Append(ctx context.Context, in message.AppendInput) (message.AppendOutcome, error)
}

// StatusSetter records instance connection changes.
type StatusSetter interface {
	SetStatus(ctx context.Context, id, status string) error
}

// Outcome summarizes what one delivery did, for the webhook response.
type Outcome struct {
	Event          string `json:"event"`
	Handled        bool   `json:"handled"`
	Deduplicated   bool   `json:"deduplicated,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// Service processes webhook deliveries.
type Service struct {
	normalizer Normalizer
	identities IdentityResolver
	router     Router
	media      MediaResolver
	messages   Appender
	instances  StatusSetter
	logger     *slog.Logger
}

// NewService creates the ingestion service.
func NewService(
	log *slog.Logger,
	normalizer Normalizer,
	identities IdentityResolver,
	router Router,
	mediaResolver MediaResolver,
	messages Appender,
	instances StatusSetter,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		normalizer: normalizer,
		identities: identities,
		router:     router,
		media:      mediaResolver,
		messages:   messages,
		instances:  instances,
		logger:     log.With(slog.String("service", "ingest")),
	}
}

// Process handles one raw webhook delivery. apiKey is the value of the
// delivery's apikey header and must match the resolved instance.
func (s *Service) Process(ctx context.Context, body []byte, apiKey string) (Outcome, error) {
	res, err := s.normalizer.Normalize(ctx, body)
	if err != nil {
		return Outcome{}, err
	}
	if res.Instance.APIKey == "" || apiKey != res.Instance.APIKey {
		return Outcome{}, apperr.Auth("invalid api key")
	}

	switch res.Kind {
	case webhook.ResultConnection:
		if err := s.instances.SetStatus(ctx, res.Connection.Instance.ID, res.Connection.Status); err != nil {
			return Outcome{}, apperr.Internal("update instance status", err)
		}
		return Outcome{Event: res.Event, Handled: true}, nil
	case webhook.ResultMessage:
		return s.processMessage(ctx, res)
	default:
		// Unrecognized event. Acknowledge so the provider stops
		// redelivering.
		return Outcome{Event: res.Event, Handled: false}, nil
	}
}

func (s *Service) processMessage(ctx context.Context, res webhook.Result) (Outcome, error) {
	env := res.Message
	inst := env.Instance

	resolved, err := s.identities.Resolve(ctx, identity.ResolveInput{
		TenantID:     inst.TenantID,
		InstanceName: inst.Name,
		TargetJID:    env.TargetJID,
		SenderJID:    env.SenderJID,
		IsGroup:      env.IsGroup,
		PushName:     env.PushName,
	})
	if err != nil {
		return Outcome{}, apperr.Internal("resolve identity", err)
	}

	target := conversation.Target{TenantID: inst.TenantID, InstanceID: inst.ID}
	if resolved.Group != nil {
		target.GroupID = resolved.Group.ID
	} else {
		target.ContactID = resolved.Contact.ID
	}
	conv, err := s.router.Route(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	mediaURL := ""
	if env.MediaURL != "" || env.MediaBase64 != "" {
		mediaURL = s.media.Resolve(ctx, media.Input{
			InstanceName: inst.Name,
			RemoteURL:    env.MediaURL,
			InlineBase64: env.MediaBase64,
			MimeType:     env.MimeType,
			Kind:         env.Kind,
		})
	}

	direction := message.DirectionInbound
	if env.FromMe {
		direction = message.DirectionOutbound
	}
	outcome, err := s.messages.Append(ctx, message.AppendInput{
		ConversationID:  conv.ID,
		InstanceID:      inst.ID,
		ExternalID:      env.ExternalID,
		Direction:       direction,
		Kind:            env.Kind,
		Body:            env.Body,
		MediaURL:        mediaURL,
		SenderJID:       env.SenderJID,
		SenderName:      resolved.SenderName,
		SenderAvatarURL: resolved.SenderAvatarURL,
		SentAt:          env.Timestamp,
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Event:          res.Event,
		Handled:        true,
		Deduplicated:   !outcome.WasNew,
		ConversationID: conv.ID,
	}
	if outcome.WasNew {
		out.MessageID = outcome.Message.ID
	}
	return out, nil
}
