package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/platform/sentinel"
	"hatchseed/pkg/requestcontext"
)

// Store persists transactions. Postgres implementations join the caller's
// transaction when ctx carries one.
type Store interface {
	Insert(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, txnID id.TransactionID) (*Transaction, error)
	MarkVoided(ctx context.Context, txnID id.TransactionID, at time.Time) error
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]*Transaction, error)
	ListByReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*Transaction, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// RecordSale snapshots an approved set. The first and last upload instants
// are derived from the occupied slots.
func (s *Service) RecordSale(ctx context.Context, sale Sale) (*Transaction, error) {
	first, last, ok := firstAndLast(sale)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sale has no uploaded slots")
	}
	txn := &Transaction{
		ID:            id.TransactionID(uuid.New()),
		SetID:         sale.SetID,
		RecordName:    sale.RecordName,
		OwnerID:       sale.OwnerID,
		ReviewerID:    sale.ReviewerID,
		Slots:         sale.Slots,
		FirstUploadAt: first,
		LastUploadAt:  last,
		RecordedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.Insert(ctx, txn); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transaction")
	}
	return txn, nil
}

// VoidSale compensates a sale whose surrounding operation failed.
func (s *Service) VoidSale(ctx context.Context, txnID id.TransactionID) error {
	err := s.store.MarkVoided(ctx, txnID, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to void transaction")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, txnID id.TransactionID) (*Transaction, error) {
	txn, err := s.store.Get(ctx, txnID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
	}
	return txn, nil
}

// ListForOwner returns the owner's non-voided transactions, newest first.
func (s *Service) ListForOwner(ctx context.Context, owner id.OwnerID) ([]*Transaction, error) {
	txns, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return activeOnly(txns), nil
}

// ListForReviewer returns the reviewer's non-voided transactions, newest first.
func (s *Service) ListForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*Transaction, error) {
	txns, err := s.store.ListByReviewer(ctx, reviewer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return activeOnly(txns), nil
}

func activeOnly(txns []*Transaction) []*Transaction {
	out := make([]*Transaction, 0, len(txns))
	for _, t := range txns {
		if !t.IsVoided() {
			out = append(out, t)
		}
	}
	return out
}

func firstAndLast(sale Sale) (first, last time.Time, ok bool) {
	for _, slot := range sale.Slots {
		if slot.IsEmpty() {
			continue
		}
		at := *slot.UploadedAt
		if !ok || at.Before(first) {
			first = at
		}
		if !ok || at.After(last) {
			last = at
		}
		ok = true
	}
	return first, last, ok
}
