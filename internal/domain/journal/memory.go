package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mutex    sync.RWMutex
	entries  []Entry
	next     int
	full     bool
	outcomes map[string]int64
}

// NewMemory builds a fixed-size ring buffer store.
func NewMemory(cfg Config) Store {
	return &memoryStore{
		entries:  make([]Entry, capacityOf(cfg)),
		outcomes: make(map[string]int64),
	}
}

func (s *memoryStore) Append(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[s.next] = entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	s.outcomes[entry.Outcome]++
	return nil
}

func (s *memoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	size := s.next
	if s.full {
		size = len(s.entries)
	}
	if limit > size {
		limit = size
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out, nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	outcomes := make(map[string]int64, len(s.outcomes))
	var total int64
	for k, v := range s.outcomes {
		outcomes[k] = v
		total += v
	}
	return map[string]any{
		"type":     DriverMemory,
		"total":    total,
		"capacity": len(s.entries),
		"outcomes": outcomes,
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
