package entitlement

import (
	"context"
	"sync"

	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	allocs map[id.OwnerID]Allocation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{allocs: make(map[id.OwnerID]Allocation)}
}

func (s *InMemoryStore) Get(_ context.Context, owner id.OwnerID) (*Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alloc, ok := s.allocs[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &alloc, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, alloc *Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocs[alloc.OwnerID] = *alloc
	return nil
}
