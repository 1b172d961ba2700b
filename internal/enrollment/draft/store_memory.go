package draft

import (
	"context"
	"sync"
	"time"

	id "careon/pkg/domain"
	"careon/pkg/platform/sentinel"
)

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// InMemoryStore keeps drafts in process memory. Expired entries are dropped
// lazily on Load.
type InMemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[id.UserID]memoryEntry
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[id.UserID]memoryEntry),
	}
}

func (s *InMemoryStore) Save(_ context.Context, owner id.UserID, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[owner] = memoryEntry{snap: snap, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, owner id.UserID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[owner]
	if !ok {
		return Snapshot{}, sentinel.ErrNotFound
	}
	if s.ttl > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.entries, owner)
		return Snapshot{}, sentinel.ErrNotFound
	}
	if entry.snap.Version != FormatVersion {
		return Snapshot{}, sentinel.ErrNotFound
	}
	return entry.snap, nil
}

func (s *InMemoryStore) Clear(_ context.Context, owner id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, owner)
	return nil
}
