// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowLog struct {
	entries  []time.Time
	lastSeen time.Time
}

// MemoryStore keeps window logs in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string]*windowLog
}

// NewMemoryStore returns an empty store. Call Run to evict idle clients.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string]*windowLog)}
}

// Name identifies the store in metrics.
func (s *MemoryStore) Name() string { return "memory" }

// Admit implements Store.
func (s *MemoryStore) Admit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.logs[key]
	if !ok {
		w = &windowLog{}
		s.logs[key] = w
	}
	w.lastSeen = now
	w.entries = prune(w.entries, now.Add(-window))

	res := StoreResult{Count: len(w.entries)}
	if len(w.entries) < limit {
		w.entries = append(w.entries, now)
		res.Allowed = true
		res.Count++
	}
	res.Oldest = w.entries[0]
	return res, nil
}

// prune drops entries at or before cutoff; entries are in insertion order.
func prune(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return entries
	}
	return append(entries[:0], entries[i:]...)
}

// Len returns the number of tracked clients.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

// Evict removes clients not seen since before cutoff.
func (s *MemoryStore) Evict(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, w := range s.logs {
		if w.lastSeen.Before(cutoff) {
			delete(s.logs, k)
			n++
		}
	}
	return n
}

// Run evicts clients idle for longer than idle() every interval until ctx
// is done. idle is re-read on each tick so it can follow the active window.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration, idle func() time.Duration, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict(now().Add(-idle()))
		}
	}
}
