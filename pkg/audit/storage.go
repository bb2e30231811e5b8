package audit

import (
	"context"
	"sync"
)

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Filter narrows the events returned by queryable storages.
type Filter struct {
	TenantID string
	Action   string
	Result   Result
	Limit    int
}

func (f Filter) matches(e Event) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	return true
}

// MemoryStorage keeps audit events in memory. Intended for tests and
// small deployments where durability is not required.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStorage creates an empty in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns stored events matching the filter, oldest first.
func (s *MemoryStorage) Events(filter Filter) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len reports how many events are stored.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

var _ Storage = (*MemoryStorage)(nil)
