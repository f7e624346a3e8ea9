package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlinehq/chatline/internal/db"
)

// PGStore persists identities in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed identity store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Upserts keep existing values when the incoming ones are empty: a later
// message without a push name must not erase a previously learned name.
const upsertContactSQL = `
INSERT INTO contacts (tenant_id, remote_jid, name, avatar_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, remote_jid) DO UPDATE SET
    name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), contacts.avatar_url),
    updated_at = now()
RETURNING id, tenant_id, remote_jid, COALESCE(name, ''), COALESCE(avatar_url, ''), created_at, updated_at
`

func (s *PGStore) UpsertContact(ctx context.Context, tenantID, remoteJID, name, avatarURL string) (Contact, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Contact{}, fmt.Errorf("parse tenant id: %w", err)
	}

	var (
		c          Contact
		id, tenant pgtype.UUID
	)
	row := s.pool.QueryRow(ctx, upsertContactSQL, tid, remoteJID, name, avatarURL)
	if err := row.Scan(&id, &tenant, &c.RemoteJID, &c.Name, &c.AvatarURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Contact{}, err
	}
	c.ID = db.UUIDToString(id)
	c.TenantID = db.UUIDToString(tenant)
	return c, nil
}

const upsertGroupSQL = `
INSERT INTO groups (tenant_id, remote_jid, subject, avatar_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, remote_jid) DO UPDATE SET
    subject = COALESCE(NULLIF(EXCLUDED.subject, ''), groups.subject),
    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), groups.avatar_url),
    updated_at = now()
RETURNING id, tenant_id, remote_jid, COALESCE(subject, ''), COALESCE(avatar_url, ''), created_at, updated_at
`

func (s *PGStore) UpsertGroup(ctx context.Context, tenantID, remoteJID, subject, avatarURL string) (Group, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Group{}, fmt.Errorf("parse tenant id: %w", err)
	}

	var (
		g          Group
		id, tenant pgtype.UUID
	)
	row := s.pool.QueryRow(ctx, upsertGroupSQL, tid, remoteJID, subject, avatarURL)
	if err := row.Scan(&id, &tenant, &g.RemoteJID, &g.Subject, &g.AvatarURL, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return Group{}, err
	}
	g.ID = db.UUIDToString(id)
	g.TenantID = db.UUIDToString(tenant)
	return g, nil
}

const upsertGroupMemberSQL = `
INSERT INTO group_members (group_id, remote_jid, name, avatar_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (group_id, remote_jid) DO UPDATE SET
    name = COALESCE(NULLIF(EXCLUDED.name, ''), group_members.name),
    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), group_members.avatar_url),
    updated_at = now()
RETURNING id, group_id, remote_jid, COALESCE(name, ''), COALESCE(avatar_url, ''), created_at, updated_at
`

func (s *PGStore) UpsertGroupMember(ctx context.Context, groupID, remoteJID, name, avatarURL string) (GroupMember, error) {
	gid, err := db.ParseUUID(groupID)
	if err != nil {
		return GroupMember{}, fmt.Errorf("parse group id: %w", err)
	}

	var (
		m         GroupMember
		id, group pgtype.UUID
	)
	row := s.pool.QueryRow(ctx, upsertGroupMemberSQL, gid, remoteJID, name, avatarURL)
	if err := row.Scan(&id, &group, &m.RemoteJID, &m.Name, &m.AvatarURL, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return GroupMember{}, err
	}
	m.ID = db.UUIDToString(id)
	m.GroupID = db.UUIDToString(group)
	return m, nil
}
