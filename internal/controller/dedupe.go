package controller

import (
	"sync"
	"time"

	"main/internal/schema"
)

// dedupeSet remembers which decision keys have already produced a
// submission. Entries expire so the set does not grow without bound across a
// session.
type dedupeSet struct {
	mu   sync.Mutex
	seen map[schema.DedupKey]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func newDedupeSet(ttl time.Duration) *dedupeSet {
	return &dedupeSet{
		seen: make(map[schema.DedupKey]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// contains reports whether the key has an unexpired entry.
func (s *dedupeSet) contains(key schema.DedupKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.seen[key]
	if !ok {
		return false
	}
	if s.ttl > 0 && s.now().Sub(at) > s.ttl {
		delete(s.seen, key)
		return false
	}
	return true
}

// mark records the key at the current time and prunes expired entries.
func (s *dedupeSet) mark(key schema.DedupKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.seen[key] = now
	if s.ttl <= 0 {
		return
	}
	for k, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, k)
		}
	}
}
