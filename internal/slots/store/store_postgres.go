package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
)

// uniqueViolation is the Postgres SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore persists sets with their four slots as one jsonb column.
// Queries run on the transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

const selectSet = `
	SELECT id, record_name, owner_id, reviewer_id, slots, awaiting_replenishment,
	       version, created_at, updated_at
	FROM slot_sets
`

func (s *PostgresStore) Create(ctx context.Context, set *models.SlotSet) error {
	slots, err := json.Marshal(set.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	query := `
		INSERT INTO slot_sets (id, record_name, owner_id, reviewer_id, slots,
			awaiting_replenishment, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(set.ID),
		set.RecordName,
		uuid.UUID(set.OwnerID),
		uuid.UUID(set.ReviewerID),
		slots,
		set.AwaitingReplenishment,
		set.CreatedAt,
		set.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert set: %w", err)
	}
	set.Version = 1
	return nil
}

// Lock takes a row lock on the set for the rest of the caller's transaction.
func (s *PostgresStore) Lock(ctx context.Context, setID id.SetID) error {
	var locked uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id FROM slot_sets WHERE id = $1 FOR UPDATE`, uuid.UUID(setID)).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock set: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, setID id.SetID) (*models.SlotSet, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectSet+` WHERE id = $1`, uuid.UUID(setID))
	set, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return set, err
}

func (s *PostgresStore) Save(ctx context.Context, set *models.SlotSet) error {
	slots, err := json.Marshal(set.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	query := `
		UPDATE slot_sets
		SET slots = $3, awaiting_replenishment = $4, updated_at = $5, version = version + 1
		WHERE id = $1 AND version = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(set.ID), set.Version, slots, set.AwaitingReplenishment, set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update set: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	set.Version++
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.OwnerID) ([]*models.SlotSet, error) {
	return s.list(ctx, selectSet+` WHERE owner_id = $1 ORDER BY created_at, id`, uuid.UUID(owner))
}

func (s *PostgresStore) ListByReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*models.SlotSet, error) {
	return s.list(ctx, selectSet+` WHERE reviewer_id = $1 ORDER BY created_at, id`, uuid.UUID(reviewer))
}

func (s *PostgresStore) OwnersForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]id.OwnerID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM slot_sets WHERE reviewer_id = $1`, uuid.UUID(reviewer))
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var owners []id.OwnerID
	for rows.Next() {
		var owner uuid.UUID
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id.OwnerID(owner))
	}
	return owners, rows.Err()
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]*models.SlotSet, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	defer rows.Close()

	var sets []*models.SlotSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sets: %w", err)
	}
	return sets, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(row scanner) (*models.SlotSet, error) {
	var (
		set                    models.SlotSet
		setID, owner, reviewer uuid.UUID
		slots                  []byte
	)
	err := row.Scan(&setID, &set.RecordName, &owner, &reviewer, &slots,
		&set.AwaitingReplenishment, &set.Version, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan set: %w", err)
	}
	if err := json.Unmarshal(slots, &set.Slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	set.ID = id.SetID(setID)
	set.OwnerID = id.OwnerID(owner)
	set.ReviewerID = id.ReviewerID(reviewer)
	return &set, nil
}
