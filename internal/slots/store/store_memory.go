// Package store persists slot sets in memory or Postgres.
package store

import (
	"context"
	"sort"
	"sync"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
)

// InMemoryStore keeps sets in a map. Every read and write clones so callers
// never share slot pointers with the store.
type InMemoryStore struct {
	mu   sync.RWMutex
	sets map[id.SetID]*models.SlotSet
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sets: make(map[id.SetID]*models.SlotSet)}
}

func (s *InMemoryStore) Create(_ context.Context, set *models.SlotSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sets[set.ID]; exists {
		return sentinel.ErrConflict
	}
	set.Version = 1
	s.sets[set.ID] = set.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, setID id.SetID) (*models.SlotSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[setID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return set.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, set *models.SlotSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sets[set.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != set.Version {
		return sentinel.ErrConflict
	}
	set.Version++
	s.sets[set.ID] = set.Clone()
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.OwnerID) ([]*models.SlotSet, error) {
	return s.filter(func(set *models.SlotSet) bool { return set.OwnerID == owner }), nil
}

func (s *InMemoryStore) ListByReviewer(_ context.Context, reviewer id.ReviewerID) ([]*models.SlotSet, error) {
	return s.filter(func(set *models.SlotSet) bool { return set.ReviewerID == reviewer }), nil
}

func (s *InMemoryStore) OwnersForReviewer(_ context.Context, reviewer id.ReviewerID) ([]id.OwnerID, error) {
	seen := make(map[id.OwnerID]struct{})
	var owners []id.OwnerID
	for _, set := range s.filter(func(set *models.SlotSet) bool { return set.ReviewerID == reviewer }) {
		if _, dup := seen[set.OwnerID]; dup {
			continue
		}
		seen[set.OwnerID] = struct{}{}
		owners = append(owners, set.OwnerID)
	}
	return owners, nil
}

// filter returns matching sets ordered by creation time, oldest first.
func (s *InMemoryStore) filter(keep func(*models.SlotSet) bool) []*models.SlotSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SlotSet
	for _, set := range s.sets {
		if keep(set) {
			out = append(out, set.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
