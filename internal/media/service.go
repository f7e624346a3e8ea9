package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/chatlinehq/chatline/internal/storage"
)

// Input describes the media attached to one inbound message.
type Input struct {
	InstanceName string
	RemoteURL    string
	InlineBase64 string
	MimeType     string
	Kind         string
}

// Service resolves message media to a stored, serveable URL.
type Service struct {
	storage storage.Provider
	logger  *slog.Logger
}

// NewService creates a media resolution service.
func NewService(log *slog.Logger, provider storage.Provider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		storage: provider,
		logger:  log.With(slog.String("service", "media")),
	}
}

// Resolve returns the URL to store on the message. A provider-hosted URL
// passes through untouched; inline base64 payloads are decoded and uploaded.
// Any failure returns "" so the message still persists without media.
func (s *Service) Resolve(ctx context.Context, in Input) string {
	if url := strings.TrimSpace(in.RemoteURL); url != "" {
		return url
	}

	payload := strings.TrimSpace(in.InlineBase64)
	if payload == "" {
		return ""
	}
	// Some providers wrap the payload in a data URL.
	if i := strings.Index(payload, ","); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}

	blob, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		s.logger.Warn("media payload decode failed",
			slog.String("instance", in.InstanceName),
			slog.String("kind", in.Kind),
			slog.String("error", err.Error()),
		)
		return ""
	}

	key := path.Join(in.InstanceName, uuid.NewString()+extensionFor(in.MimeType, in.Kind))
	if err := s.storage.Put(ctx, key, bytes.NewReader(blob)); err != nil {
		s.logger.Warn("media upload failed",
			slog.String("instance", in.InstanceName),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return s.storage.PublicURL(key)
}
