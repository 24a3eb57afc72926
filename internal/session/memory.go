package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"trip-planner/internal/domain"
)

type memoryEntry struct {
	rec     domain.TripPreferenceRecord
	expires time.Time
}

// MemoryStore keeps records in process memory. Entries expire after ttl
// without a save.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttlOrDefault(ttl),
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (domain.TripPreferenceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return domain.TripPreferenceRecord{}, false, nil
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, sessionID)
		return domain.TripPreferenceRecord{}, false, nil
	}
	return clone(e.rec), true, nil
}

func (s *MemoryStore) Save(_ context.Context, rec domain.TripPreferenceRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("session: Save: session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[rec.SessionID] = memoryEntry{rec: clone(rec), expires: now.Add(s.ttl)}
	// Sweep here so idle sessions do not accumulate without a janitor goroutine.
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
