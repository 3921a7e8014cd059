// Package store persists notifications and feed cursors.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"hatchseed/internal/notification/models"
	id "hatchseed/pkg/domain"
)

type InMemoryStore struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]*models.Notification
	cursors       map[id.IdentityKey]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		notifications: make(map[id.NotificationID]*models.Notification),
		cursors:       make(map[id.IdentityKey]time.Time),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, notifications ...*models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notifications {
		cp := *n
		s.notifications[n.ID] = &cp
	}
	return nil
}

func (s *InMemoryStore) ListForRecipient(_ context.Context, recipient id.IdentityKey, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.Recipient == recipient {
			cp := *n
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountSince(_ context.Context, recipient id.IdentityKey, since, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.Recipient == recipient && n.CreatedAt.After(since) && n.Visible(now) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) DeleteBroadcast(_ context.Context, broadcastID id.BroadcastID, sender id.IdentityKey) ([]id.IdentityKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recipients []id.IdentityKey
	for nid, n := range s.notifications {
		if n.BroadcastID != nil && *n.BroadcastID == broadcastID && n.Sender == sender {
			recipients = append(recipients, n.Recipient)
			delete(s.notifications, nid)
		}
	}
	return recipients, nil
}

func (s *InMemoryStore) ListBroadcasts(_ context.Context, sender id.IdentityKey) ([]models.BroadcastSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := make(map[id.BroadcastID]*models.BroadcastSummary)
	for _, n := range s.notifications {
		if n.BroadcastID == nil || n.Sender != sender {
			continue
		}
		sum, ok := byID[*n.BroadcastID]
		if !ok {
			sum = &models.BroadcastSummary{
				BroadcastID: *n.BroadcastID,
				Type:        n.Type,
				Priority:    n.Priority,
				Message:     n.Message,
				IsStory:     n.IsStory,
				CreatedAt:   n.CreatedAt,
				ExpiresAt:   n.ExpiresAt,
			}
			byID[*n.BroadcastID] = sum
		}
		sum.Recipients++
	}
	out := make([]models.BroadcastSummary, 0, len(byID))
	for _, sum := range byID {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Cursor(_ context.Context, recipient id.IdentityKey) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[recipient], nil
}

func (s *InMemoryStore) SetCursor(_ context.Context, recipient id.IdentityKey, readThrough time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if readThrough.After(s.cursors[recipient]) {
		s.cursors[recipient] = readThrough
	}
	return nil
}

func (s *InMemoryStore) Purge(_ context.Context, cutoff, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for nid, n := range s.notifications {
		expiredStory := n.IsStory && n.ExpiresAt != nil && n.ExpiresAt.Before(now)
		stale := !n.IsStory && n.CreatedAt.Before(cutoff)
		if expiredStory || stale {
			delete(s.notifications, nid)
			purged++
		}
	}
	return purged, nil
}

func (s *InMemoryStore) DeleteRelated(_ context.Context, setID id.SetID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for nid, n := range s.notifications {
		if n.RelatedSetID != nil && *n.RelatedSetID == setID {
			delete(s.notifications, nid)
			deleted++
		}
	}
	return deleted, nil
}

func sortNewestFirst(ns []*models.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].ID.String() < ns[j].ID.String()
		}
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
}
