package instance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlinehq/chatline/internal/db"
)

// PGStore persists instances in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed instance store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const getByNameSQL = `
SELECT id, tenant_id, name, status, api_key, created_at, updated_at
FROM instances
WHERE name = $1
`

// GetByName looks up an instance by its channel name.
func (s *PGStore) GetByName(ctx context.Context, name string) (Instance, error) {
	row := s.pool.QueryRow(ctx, getByNameSQL, name)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instance{}, ErrNotFound
		}
		return Instance{}, err
	}
	return inst, nil
}

const updateStatusSQL = `
UPDATE instances
SET status = $2, updated_at = now()
WHERE id = $1
`

// UpdateStatus sets the connection status of an instance.
func (s *PGStore) UpdateStatus(ctx context.Context, id, status string) error {
	uid, err := db.ParseUUID(id)
	if err != nil {
		return fmt.Errorf("parse instance id: %w", err)
	}
	tag, err := s.pool.Exec(ctx, updateStatusSQL, uid, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInstance(row pgx.Row) (Instance, error) {
	var (
		inst       Instance
		id, tenant pgtype.UUID
	)
	err := row.Scan(&id, &tenant, &inst.Name, &inst.Status, &inst.APIKey, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return Instance{}, err
	}
	inst.ID = db.UUIDToString(id)
	inst.TenantID = db.UUIDToString(tenant)
	return inst, nil
}
