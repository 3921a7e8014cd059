package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
)

// PostgresStore writes transactions through the caller's SQL transaction
// when one is present so the ledger row commits with the set reset.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

const selectTransaction = `
	SELECT id, set_id, record_name, owner_id, reviewer_id, slots,
	       first_upload_at, last_upload_at, recorded_at, voided_at
	FROM transactions
`

func (s *PostgresStore) Insert(ctx context.Context, txn *Transaction) error {
	slots, err := json.Marshal(txn.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots snapshot: %w", err)
	}
	query := `
		INSERT INTO transactions (id, set_id, record_name, owner_id, reviewer_id, slots,
			first_upload_at, last_upload_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(txn.ID),
		uuid.UUID(txn.SetID),
		txn.RecordName,
		uuid.UUID(txn.OwnerID),
		uuid.UUID(txn.ReviewerID),
		slots,
		txn.FirstUploadAt,
		txn.LastUploadAt,
		txn.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, txnID id.TransactionID) (*Transaction, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectTransaction+` WHERE id = $1`, uuid.UUID(txnID))
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return txn, err
}

func (s *PostgresStore) MarkVoided(ctx context.Context, txnID id.TransactionID, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE transactions SET voided_at = COALESCE(voided_at, $2) WHERE id = $1`,
		uuid.UUID(txnID), at)
	if err != nil {
		return fmt.Errorf("void transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("void transaction: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.OwnerID) ([]*Transaction, error) {
	return s.list(ctx, selectTransaction+` WHERE owner_id = $1 ORDER BY recorded_at DESC`, uuid.UUID(owner))
}

func (s *PostgresStore) ListByReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*Transaction, error) {
	return s.list(ctx, selectTransaction+` WHERE reviewer_id = $1 ORDER BY recorded_at DESC`, uuid.UUID(reviewer))
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]*Transaction, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*Transaction, error) {
	var (
		txn                           Transaction
		txnID, setID, owner, reviewer uuid.UUID
		slots                         []byte
		voided                        sql.NullTime
	)
	err := row.Scan(&txnID, &setID, &txn.RecordName, &owner, &reviewer, &slots,
		&txn.FirstUploadAt, &txn.LastUploadAt, &txn.RecordedAt, &voided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if err := json.Unmarshal(slots, &txn.Slots); err != nil {
		return nil, fmt.Errorf("decode slots snapshot: %w", err)
	}
	txn.ID = id.TransactionID(txnID)
	txn.SetID = id.SetID(setID)
	txn.OwnerID = id.OwnerID(owner)
	txn.ReviewerID = id.ReviewerID(reviewer)
	if voided.Valid {
		at := voided.Time
		txn.VoidedAt = &at
	}
	return &txn, nil
}
