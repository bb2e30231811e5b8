package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process sliding window store. Suitable for single
// instance deployments and tests; multi-instance deployments need the
// Redis store so all instances share one window.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates an in-memory store with background cleanup of
// idle keys.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string][]time.Time),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *MemoryStore) AddIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := prune(s.windows[key], now.Add(-window))
	count := int64(len(kept))
	if count >= int64(limit) {
		s.windows[key] = kept
		return false, count, nil
	}

	s.windows[key] = append(kept, now)
	return true, count + 1, nil
}

func (s *MemoryStore) CountInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := prune(s.windows[key], now.Add(-window))
	s.windows[key] = kept
	return int64(len(kept)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return nil
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
			s.dropStale()
		case <-s.stop:
			return
		}
	}
}

// dropStale removes keys whose newest timestamp is over an hour old. The
// per-call prune in AddIfAllowed keeps live keys accurate; this only
// bounds memory for keys that stopped receiving traffic.
func (s *MemoryStore) dropStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for key, stamps := range s.windows {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(s.windows, key)
		}
	}
}

// prune drops timestamps at or before the cutoff. Timestamps are appended
// in order, so the slice stays sorted and a single scan suffices.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[idx:]...)
}
