package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlinehq/chatline/internal/db"
)

// PGStore persists triggers in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed trigger store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ClaimBatch picks due pending triggers and advances their attempt state in
// one statement. SKIP LOCKED keeps concurrent workers from double-claiming;
// the exponential next_attempt_at means a trigger that keeps failing backs
// off instead of hammering the downstream.
const claimBatchSQL = `
WITH due AS (
    SELECT id
    FROM outbox_triggers
    WHERE status = 'pending' AND next_attempt_at <= now()
    ORDER BY created_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE outbox_triggers t
SET attempts = t.attempts + 1,
    next_attempt_at = now() + make_interval(secs => $2 * power(2, LEAST(t.attempts, 6))),
    updated_at = now()
FROM due
WHERE t.id = due.id
RETURNING t.id, t.kind, t.conversation_id, t.message_id, t.status, t.attempts,
    t.next_attempt_at, t.created_at, t.updated_at
`

func (s *PGStore) ClaimBatch(ctx context.Context, limit, backoffSeconds int) ([]Trigger, error) {
	rows, err := s.pool.Query(ctx, claimBatchSQL, limit, backoffSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var (
			trig          Trigger
			id, conv, msg pgtype.UUID
		)
		if err := rows.Scan(&id, &trig.Kind, &conv, &msg, &trig.Status, &trig.Attempts,
			&trig.NextAttemptAt, &trig.CreatedAt, &trig.UpdatedAt); err != nil {
			return nil, err
		}
		trig.ID = db.UUIDToString(id)
		trig.ConversationID = db.UUIDToString(conv)
		trig.MessageID = db.UUIDToString(msg)
		out = append(out, trig)
	}
	return out, rows.Err()
}

// MarkSent records a successful dispatch.
func (s *PGStore) MarkSent(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusSent)
}

// MarkFailed retires a trigger that exhausted its attempts.
func (s *PGStore) MarkFailed(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusFailed)
}

func (s *PGStore) setStatus(ctx context.Context, id, status string) error {
	tid, err := db.ParseUUID(id)
	if err != nil {
		return fmt.Errorf("parse trigger id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE outbox_triggers SET status = $2, updated_at = now() WHERE id = $1`, tid, status)
	return err
}
