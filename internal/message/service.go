package message

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/webhook"
)

// Every analysisInterval messages in a conversation, an analysis trigger is
// queued for the downstream summarizer.
const analysisInterval = 20

// Store defines the persistence operations the message service needs.
type Store interface {
	Append(ctx context.Context, params AppendParams) (AppendOutcome, error)
	ListByConversation(ctx context.Context, filter ListFilter) ([]Message, error)
}

// Service persists messages idempotently and decides trigger enqueueing.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "message")),
	}
}

// Append stores one message. Duplicate deliveries (same instance and
// external id) are absorbed without touching counters or triggers.
func (s *Service) Append(ctx context.Context, in AppendInput) (AppendOutcome, error) {
	if err := validateAppend(in); err != nil {
		return AppendOutcome{}, err
	}

	params := AppendParams{
		AppendInput:       in,
		AnalysisEvery:     analysisInterval,
		WantTranscription: in.Kind == webhook.KindAudio && in.MediaURL != "",
	}
	outcome, err := s.store.Append(ctx, params)
	if err != nil {
		return AppendOutcome{}, apperr.Internal("append message", err)
	}

	if !outcome.WasNew {
		s.logger.Debug("duplicate message delivery absorbed",
			slog.String("external_id", in.ExternalID),
			slog.String("conversation_id", in.ConversationID),
		)
		return outcome, nil
	}

	s.logger.Info("message stored",
		slog.String("message_id", outcome.Message.ID),
		slog.String("conversation_id", in.ConversationID),
		slog.String("direction", in.Direction),
		slog.String("kind", in.Kind),
		slog.Bool("analysis_queued", outcome.AnalysisQueued),
		slog.Bool("transcription_queued", outcome.TranscriptionQueued),
	)
	return outcome, nil
}

// List returns a conversation's messages, oldest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Message, error) {
	if strings.TrimSpace(filter.ConversationID) == "" {
		return nil, apperr.Validation("conversation id is required")
	}
	msgs, err := s.store.ListByConversation(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	return msgs, nil
}

func validateAppend(in AppendInput) error {
	switch {
	case strings.TrimSpace(in.ConversationID) == "":
		return apperr.Validation("conversation id is required")
	case strings.TrimSpace(in.InstanceID) == "":
		return apperr.Validation("instance id is required")
	case strings.TrimSpace(in.ExternalID) == "":
		return apperr.Validation("external id is required")
	}
	switch in.Direction {
	case DirectionInbound, DirectionOutbound, DirectionSystem:
	default:
		return apperr.Validation("unknown message direction")
	}
	return nil
}
