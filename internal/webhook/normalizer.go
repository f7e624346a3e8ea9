package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/instance"
)

const groupSuffix = "@g.us"

const (
	eventMessagesUpsert   = "messages.upsert"
	eventConnectionUpdate = "connection.update"
)

const (
	KindText     = "text"
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
	KindSticker  = "sticker"
)

// InstanceRegistry resolves instance names carried in webhook payloads.
type InstanceRegistry interface {
	GetByName(ctx context.Context, name string) (instance.Instance, error)
}

// Normalizer turns raw provider webhook payloads into typed events.
type Normalizer struct {
	instances InstanceRegistry
	logger    *slog.Logger
}

// NewNormalizer creates a webhook normalizer.
func NewNormalizer(log *slog.Logger, instances InstanceRegistry) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		instances: instances,
		logger:    log.With(slog.String("service", "webhook")),
	}
}

// Normalize parses a raw webhook body and classifies it. Unrecognized event
// names yield a ResultUnrecognized result rather than an error so callers can
// acknowledge them without processing.
func (n *Normalizer) Normalize(ctx context.Context, body []byte) (Result, error) {
	var raw RawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, apperr.Wrap(apperr.KindValidation, "malformed webhook payload", err)
	}

	event := canonicalEvent(raw.Event)
	instName := strings.TrimSpace(raw.Instance)
	if instName == "" {
		return Result{}, apperr.Validation("webhook payload missing instance")
	}

	inst, err := n.instances.GetByName(ctx, instName)
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return Result{}, apperr.NotFound(fmt.Sprintf("unknown instance %q", instName))
		}
		return Result{}, apperr.Wrap(apperr.KindInternal, "resolve instance", err)
	}

	switch event {
	case eventMessagesUpsert:
		// Connection updates must pass regardless of status, but messages
		// require a connected session. Erroring makes the provider
		// redeliver once the instance reconnects.
		if !inst.Connected() {
			return Result{}, apperr.NotFound(fmt.Sprintf("instance %q is not connected", inst.Name))
		}
		env, err := n.normalizeMessage(inst, raw.Data)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: ResultMessage, Event: event, Instance: inst, Message: env}, nil
	case eventConnectionUpdate:
		upd, err := normalizeConnection(inst, raw.Data)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: ResultConnection, Event: event, Instance: inst, Connection: upd}, nil
	default:
		n.logger.Debug("unrecognized webhook event", slog.String("event", raw.Event))
		return Result{Kind: ResultUnrecognized, Event: event, Instance: inst}, nil
	}
}

func (n *Normalizer) normalizeMessage(inst instance.Instance, data json.RawMessage) (Envelope, error) {
	var msg rawMessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		return Envelope{}, apperr.Wrap(apperr.KindValidation, "malformed message data", err)
	}

	target := strings.TrimSpace(msg.Key.RemoteJid)
	if target == "" {
		return Envelope{}, apperr.Validation("message missing remote jid")
	}
	externalID := strings.TrimSpace(msg.Key.ID)
	if externalID == "" {
		return Envelope{}, apperr.Validation("message missing external id")
	}

	env := Envelope{
		Instance:   inst,
		TargetJID:  target,
		IsGroup:    strings.HasSuffix(target, groupSuffix),
		FromMe:     msg.Key.FromMe,
		PushName:   strings.TrimSpace(msg.PushName),
		ExternalID: externalID,
	}
	if env.IsGroup {
		env.SenderJID = strings.TrimSpace(msg.Key.Participant)
	} else {
		env.SenderJID = target
	}
	if msg.MessageTimestamp > 0 {
		env.Timestamp = time.Unix(msg.MessageTimestamp, 0).UTC()
	}

	classifyContent(&env, msg.Message)
	return env, nil
}

// classifyContent fills kind, body, and media fields from the provider
// content union. Kinds outside the known set degrade to an empty text
// message so the conversation still surfaces.
func classifyContent(env *Envelope, content rawMessageContent) {
	switch {
	case content.ImageMessage != nil:
		env.Kind = KindImage
		setMedia(env, content.ImageMessage, content.Base64)
	case content.VideoMessage != nil:
		env.Kind = KindVideo
		setMedia(env, content.VideoMessage, content.Base64)
	case content.AudioMessage != nil:
		env.Kind = KindAudio
		setMedia(env, content.AudioMessage, content.Base64)
	case content.DocumentMessage != nil:
		env.Kind = KindDocument
		setMedia(env, content.DocumentMessage, content.Base64)
	case content.StickerMessage != nil:
		env.Kind = KindSticker
		setMedia(env, content.StickerMessage, content.Base64)
	case content.ExtendedTextMessage != nil:
		env.Kind = KindText
		env.Body = content.ExtendedTextMessage.Text
	case content.Conversation != "":
		env.Kind = KindText
		env.Body = content.Conversation
	default:
		env.Kind = KindText
		env.Body = ""
	}
}

func setMedia(env *Envelope, media *rawMediaMessage, base64 string) {
	env.Body = strings.TrimSpace(media.Caption)
	if env.Body == "" {
		env.Body = strings.TrimSpace(media.FileName)
	}
	env.MediaURL = strings.TrimSpace(media.URL)
	env.MediaBase64 = strings.TrimSpace(base64)
	env.MimeType = strings.TrimSpace(media.Mimetype)
	env.FileName = strings.TrimSpace(media.FileName)
}

func normalizeConnection(inst instance.Instance, data json.RawMessage) (ConnectionUpdate, error) {
	var conn rawConnectionData
	if err := json.Unmarshal(data, &conn); err != nil {
		return ConnectionUpdate{}, apperr.Wrap(apperr.KindValidation, "malformed connection data", err)
	}
	state := strings.ToLower(strings.TrimSpace(conn.State))
	status := instance.StatusDisconnected
	if state == "open" || state == "connected" {
		status = instance.StatusConnected
	}
	return ConnectionUpdate{Instance: inst, Status: status}, nil
}

// canonicalEvent lowercases an event name and folds underscore separators so
// MESSAGES_UPSERT and messages.upsert classify the same way.
func canonicalEvent(event string) string {
	event = strings.ToLower(strings.TrimSpace(event))
	return strings.ReplaceAll(event, "_", ".")
}
