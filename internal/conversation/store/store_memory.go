// Package store persists conversations and read cursors in memory or Postgres.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"hatchseed/internal/conversation/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
)

type cursorKey struct {
	identity id.IdentityKey
	convID   id.ConversationID
}

type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[id.ConversationID]*models.Conversation
	cursors       map[cursorKey]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[id.ConversationID]*models.Conversation),
		cursors:       make(map[cursorKey]int64),
	}
}

func (s *InMemoryStore) Create(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conv.ID]; exists {
		return sentinel.ErrConflict
	}
	conv.Version = 1
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, convID id.ConversationID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return conv.Clone(), nil
}

// AppendMessage requires msg to directly follow the stored last message.
func (s *InMemoryStore) AppendMessage(_ context.Context, convID id.ConversationID, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if msg.Seq != conv.LastSeq()+1 {
		return sentinel.ErrConflict
	}
	conv.Messages = append(conv.Messages, msg)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.conversations[conv.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != conv.Version {
		return sentinel.ErrConflict
	}
	conv.Version++
	stored.Status = conv.Status
	stored.UpdatedAt = conv.UpdatedAt
	stored.ClosedAt = conv.Clone().ClosedAt
	stored.Version = conv.Version
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.OwnerID) ([]*models.Conversation, error) {
	return s.list(func(c *models.Conversation) bool { return c.OwnerID == owner }), nil
}

func (s *InMemoryStore) ListByReviewer(_ context.Context, reviewer id.ReviewerID) ([]*models.Conversation, error) {
	return s.list(func(c *models.Conversation) bool { return c.ReviewerID == reviewer }), nil
}

// list returns matches ordered by most recent activity.
func (s *InMemoryStore) list(match func(*models.Conversation) bool) []*models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Conversation
	for _, c := range s.conversations {
		if match(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *InMemoryStore) Cursors(_ context.Context, key id.IdentityKey) (map[id.ConversationID]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.ConversationID]int64)
	for k, seq := range s.cursors {
		if k.identity == key {
			out[k.convID] = seq
		}
	}
	return out, nil
}

func (s *InMemoryStore) SetCursor(_ context.Context, key id.IdentityKey, convID id.ConversationID, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cursorKey{identity: key, convID: convID}
	if seq > s.cursors[k] {
		s.cursors[k] = seq
	}
	return nil
}

func (s *InMemoryStore) PurgeInactive(_ context.Context, cutoff time.Time) (int, error) {
	return s.deleteWhere(func(c *models.Conversation) bool { return c.UpdatedAt.Before(cutoff) }), nil
}

func (s *InMemoryStore) DeleteRelated(_ context.Context, setID id.SetID) (int, error) {
	return s.deleteWhere(func(c *models.Conversation) bool {
		return c.RelatedSetID != nil && *c.RelatedSetID == setID
	}), nil
}

// deleteWhere drops matching conversations together with their cursors.
func (s *InMemoryStore) deleteWhere(match func(*models.Conversation) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for convID, c := range s.conversations {
		if !match(c) {
			continue
		}
		delete(s.conversations, convID)
		for k := range s.cursors {
			if k.convID == convID {
				delete(s.cursors, k)
			}
		}
		deleted++
	}
	return deleted
}
