package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlinehq/chatline/internal/db"
	"github.com/chatlinehq/chatline/internal/outbox"
)

// PGStore persists messages in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed message store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const insertMessageSQL = `
INSERT INTO messages (conversation_id, instance_id, external_id, direction, kind, body,
    media_url, sender_jid, sender_name, sender_avatar_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
ON CONFLICT (instance_id, external_id) DO NOTHING
RETURNING id, created_at
`

const bumpInboundSQL = `
UPDATE conversations
SET unread_count = unread_count + 1,
    last_message_at = $2,
    last_message_body = $3,
    updated_at = now()
WHERE id = $1
`

const touchOutboundSQL = `
UPDATE conversations
SET last_message_at = $2,
    last_message_body = $3,
    updated_at = now()
WHERE id = $1
`

const countMessagesSQL = `
SELECT count(*) FROM messages WHERE conversation_id = $1
`

const enqueueTriggerSQL = `
INSERT INTO outbox_triggers (kind, conversation_id, message_id)
VALUES ($1, $2, $3)
`

// Append inserts one message and its side effects in a single transaction:
// the unread counter and last-message snapshot on the conversation, and any
// outbox triggers the message earns. A duplicate external id makes the whole
// append a no-op.
func (s *PGStore) Append(ctx context.Context, params AppendParams) (AppendOutcome, error) {
	convID, err := db.ParseUUID(params.ConversationID)
	if err != nil {
		return AppendOutcome{}, fmt.Errorf("parse conversation id: %w", err)
	}
	instID, err := db.ParseUUID(params.InstanceID)
	if err != nil {
		return AppendOutcome{}, fmt.Errorf("parse instance id: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AppendOutcome{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		msgID pgtype.UUID
		msg   = messageFromInput(params.AppendInput)
	)
	sentAt := pgtype.Timestamptz{Time: params.SentAt, Valid: !params.SentAt.IsZero()}
	err = tx.QueryRow(ctx, insertMessageSQL,
		convID, instID, params.ExternalID, params.Direction, params.Kind, params.Body,
		db.ToPgText(params.MediaURL), db.ToPgText(params.SenderJID),
		db.ToPgText(params.SenderName), db.ToPgText(params.SenderAvatarURL), sentAt,
	).Scan(&msgID, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Redelivery. Nothing was inserted, so nothing else may change.
			return AppendOutcome{WasNew: false}, nil
		}
		return AppendOutcome{}, fmt.Errorf("insert message: %w", err)
	}
	msg.ID = db.UUIDToString(msgID)

	snapshotSQL := touchOutboundSQL
	if params.Direction == DirectionInbound {
		snapshotSQL = bumpInboundSQL
	}
	if _, err := tx.Exec(ctx, snapshotSQL, convID, msg.CreatedAt, params.Body); err != nil {
		return AppendOutcome{}, fmt.Errorf("update conversation snapshot: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, countMessagesSQL, convID).Scan(&total); err != nil {
		return AppendOutcome{}, fmt.Errorf("count messages: %w", err)
	}

	outcome := AppendOutcome{Message: msg, WasNew: true, TotalCount: total}

	if params.AnalysisEvery > 0 && total%params.AnalysisEvery == 0 {
		if _, err := tx.Exec(ctx, enqueueTriggerSQL, outbox.KindAnalysis, convID, msgID); err != nil {
			return AppendOutcome{}, fmt.Errorf("enqueue analysis trigger: %w", err)
		}
		outcome.AnalysisQueued = true
	}
	if params.WantTranscription {
		if _, err := tx.Exec(ctx, enqueueTriggerSQL, outbox.KindTranscription, convID, msgID); err != nil {
			return AppendOutcome{}, fmt.Errorf("enqueue transcription trigger: %w", err)
		}
		outcome.TranscriptionQueued = true
	}

	if err := tx.Commit(ctx); err != nil {
		return AppendOutcome{}, fmt.Errorf("commit: %w", err)
	}
	return outcome, nil
}

const listByConversationSQL = `
SELECT id, conversation_id, instance_id, external_id, direction, kind, body,
    COALESCE(media_url, ''), COALESCE(sender_jid, ''), COALESCE(sender_name, ''),
    COALESCE(sender_avatar_url, ''), created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3
`

// ListByConversation returns a conversation's messages, oldest first.
func (s *PGStore) ListByConversation(ctx context.Context, filter ListFilter) ([]Message, error) {
	convID, err := db.ParseUUID(filter.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("parse conversation id: %w", err)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, listByConversationSQL, convID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m              Message
			id, conv, inst pgtype.UUID
		)
		if err := rows.Scan(&id, &conv, &inst, &m.ExternalID, &m.Direction, &m.Kind, &m.Body,
			&m.MediaURL, &m.SenderJID, &m.SenderName, &m.SenderAvatarURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ID = db.UUIDToString(id)
		m.ConversationID = db.UUIDToString(conv)
		m.InstanceID = db.UUIDToString(inst)
		out = append(out, m)
	}
	return out, rows.Err()
}

func messageFromInput(in AppendInput) Message {
	return Message{
		ConversationID:  in.ConversationID,
		InstanceID:      in.InstanceID,
		ExternalID:      in.ExternalID,
		Direction:       in.Direction,
		Kind:            in.Kind,
		Body:            in.Body,
		MediaURL:        in.MediaURL,
		SenderJID:       in.SenderJID,
		SenderName:      in.SenderName,
		SenderAvatarURL: in.SenderAvatarURL,
	}
}
