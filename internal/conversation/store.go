package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlinehq/chatline/internal/db"
)

// PGStore persists conversations in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed conversation store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const conversationColumns = `
    id, tenant_id, instance_id, contact_id, group_id, status,
    assigned_agent_id, unread_count,
    COALESCE(last_message_at, 'epoch'::timestamptz), COALESCE(last_message_body, ''),
    created_at, updated_at`

// The partial unique indexes on (tenant_id, contact_id) and
// (tenant_id, group_id) for non-closed rows make these upserts atomic under
// concurrent deliveries: losers land on the winner's row. xmax = 0 holds
// only for freshly inserted rows, distinguishing create from reuse.
const findOrCreateContactSQL = `
INSERT INTO conversations (tenant_id, instance_id, contact_id, status)
VALUES ($1, $2, $3, 'pending')
ON CONFLICT (tenant_id, contact_id) WHERE status IN ('pending', 'open') AND contact_id IS NOT NULL
DO UPDATE SET updated_at = now()
RETURNING` + conversationColumns + `, (xmax = 0) AS created
`

const findOrCreateGroupSQL = `
INSERT INTO conversations (tenant_id, instance_id, group_id, status)
VALUES ($1, $2, $3, 'pending')
ON CONFLICT (tenant_id, group_id) WHERE status IN ('pending', 'open') AND group_id IS NOT NULL
DO UPDATE SET updated_at = now()
RETURNING` + conversationColumns + `, (xmax = 0) AS created
`

// FindOrCreateActive returns the single non-closed conversation for the
// target, creating a pending one if none exists. The second return reports
// whether a new row was created.
func (s *PGStore) FindOrCreateActive(ctx context.Context, target Target) (Conversation, bool, error) {
	tid, err := db.ParseUUID(target.TenantID)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("parse tenant id: %w", err)
	}
	iid, err := db.ParseUUID(target.InstanceID)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("parse instance id: %w", err)
	}

	var (
		query    string
		targetID pgtype.UUID
	)
	switch {
	case target.ContactID != "" && target.GroupID == "":
		query = findOrCreateContactSQL
		targetID, err = db.ParseUUID(target.ContactID)
	case target.GroupID != "" && target.ContactID == "":
		query = findOrCreateGroupSQL
		targetID, err = db.ParseUUID(target.GroupID)
	default:
		return Conversation{}, false, fmt.Errorf("target must carry exactly one of contact or group")
	}
	if err != nil {
		return Conversation{}, false, fmt.Errorf("parse target id: %w", err)
	}

	row := s.pool.QueryRow(ctx, query, tid, iid, targetID)
	conv, created, err := scanConversationCreated(row)
	if err != nil {
		return Conversation{}, false, err
	}
	return conv, created, nil
}

// Claim assigns an agent if and only if the conversation is still unclaimed
// and not closed. Returns the updated row and whether this caller won.
const claimSQL = `
UPDATE conversations
SET status = 'open', assigned_agent_id = $2, updated_at = now()
WHERE id = $1 AND status IN ('pending', 'open') AND assigned_agent_id IS NULL
RETURNING` + conversationColumns + `
`

func (s *PGStore) Claim(ctx context.Context, id, agentID string) (Conversation, bool, error) {
	cid, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("parse conversation id: %w", err)
	}
	aid, err := db.ParseUUID(agentID)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("parse agent id: %w", err)
	}

	row := s.pool.QueryRow(ctx, claimSQL, cid, aid)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, false, nil
		}
		return Conversation{}, false, err
	}
	return conv, true, nil
}

const closeSQL = `
UPDATE conversations
SET status = 'closed', updated_at = now()
WHERE id = $1 AND status IN ('pending', 'open')
RETURNING` + conversationColumns + `
`

// Close transitions an active conversation to closed.
func (s *PGStore) Close(ctx context.Context, id string) (Conversation, error) {
	cid, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse conversation id: %w", err)
	}
	row := s.pool.QueryRow(ctx, closeSQL, cid)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

const getSQL = `
SELECT` + conversationColumns + `
FROM conversations
WHERE id = $1
`

// Get fetches a conversation by id.
func (s *PGStore) Get(ctx context.Context, id string) (Conversation, error) {
	cid, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse conversation id: %w", err)
	}
	row := s.pool.QueryRow(ctx, getSQL, cid)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

const listSQL = `
SELECT` + conversationColumns + `
FROM conversations
WHERE tenant_id = $1 AND ($2::text = '' OR status = $2)
ORDER BY GREATEST(last_message_at, updated_at) DESC
LIMIT $3 OFFSET $4
`

// List returns a tenant's conversations, newest activity first.
func (s *PGStore) List(ctx context.Context, filter ListFilter) ([]Conversation, error) {
	tid, err := db.ParseUUID(filter.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, listSQL, tid, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv                  Conversation
		id, tenant, inst      pgtype.UUID
		contact, group, agent pgtype.UUID
	)
	err := row.Scan(&id, &tenant, &inst, &contact, &group, &conv.Status,
		&agent, &conv.UnreadCount, &conv.LastMessageAt, &conv.LastMessageBody,
		&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, err
	}
	fillConversation(&conv, id, tenant, inst, contact, group, agent)
	return conv, nil
}

func scanConversationCreated(row pgx.Row) (Conversation, bool, error) {
	var (
		conv                  Conversation
		id, tenant, inst      pgtype.UUID
		contact, group, agent pgtype.UUID
		created               bool
	)
	err := row.Scan(&id, &tenant, &inst, &contact, &group, &conv.Status,
		&agent, &conv.UnreadCount, &conv.LastMessageAt, &conv.LastMessageBody,
		&conv.CreatedAt, &conv.UpdatedAt, &created)
	if err != nil {
		return Conversation{}, false, err
	}
	fillConversation(&conv, id, tenant, inst, contact, group, agent)
	return conv, created, nil
}

func fillConversation(conv *Conversation, id, tenant, inst, contact, group, agent pgtype.UUID) {
	conv.ID = db.UUIDToString(id)
	conv.TenantID = db.UUIDToString(tenant)
	conv.InstanceID = db.UUIDToString(inst)
	conv.ContactID = db.UUIDToString(contact)
	conv.GroupID = db.UUIDToString(group)
	conv.AssignedAgentID = db.UUIDToString(agent)
}
