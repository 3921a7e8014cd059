package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
)

// InMemoryStore keeps transactions in process memory. It does not take part
// in database transactions; callers compensate with VoidSale instead.
type InMemoryStore struct {
	mu   sync.RWMutex
	txns map[id.TransactionID]*Transaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{txns: make(map[id.TransactionID]*Transaction)}
}

func (s *InMemoryStore) Insert(_ context.Context, txn *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txns[txn.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *txn
	s.txns[txn.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, txnID id.TransactionID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.txns[txnID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *InMemoryStore) MarkVoided(_ context.Context, txnID id.TransactionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[txnID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if txn.VoidedAt == nil {
		voided := at
		txn.VoidedAt = &voided
	}
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.OwnerID) ([]*Transaction, error) {
	return s.filter(func(t *Transaction) bool { return t.OwnerID == owner }), nil
}

func (s *InMemoryStore) ListByReviewer(_ context.Context, reviewer id.ReviewerID) ([]*Transaction, error) {
	return s.filter(func(t *Transaction) bool { return t.ReviewerID == reviewer }), nil
}

func (s *InMemoryStore) filter(keep func(*Transaction) bool) []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, txn := range s.txns {
		if keep(txn) {
			cp := *txn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out
}
