package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, owner id.OwnerID) (*Allocation, error) {
	query := `SELECT owner_id, remaining, revoked_at, updated_at FROM entitlements WHERE owner_id = $1`
	var (
		ownerID uuid.UUID
		revoked sql.NullTime
		alloc   Allocation
	)
	err := txcontext.ExecerFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(owner)).
		Scan(&ownerID, &alloc.Remaining, &revoked, &alloc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find allocation: %w", err)
	}
	alloc.OwnerID = id.OwnerID(ownerID)
	if revoked.Valid {
		at := revoked.Time
		alloc.RevokedAt = &at
	}
	return &alloc, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, alloc *Allocation) error {
	query := `
		INSERT INTO entitlements (owner_id, remaining, revoked_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			remaining = EXCLUDED.remaining,
			revoked_at = EXCLUDED.revoked_at,
			updated_at = EXCLUDED.updated_at
	`
	var revoked sql.NullTime
	if alloc.RevokedAt != nil {
		revoked = sql.NullTime{Time: *alloc.RevokedAt, Valid: true}
	}
	_, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(alloc.OwnerID), alloc.Remaining, revoked, alloc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert allocation: %w", err)
	}
	return nil
}
