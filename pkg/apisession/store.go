// Package apisession keeps server-created sessions (docent tours, chat
// conversations, quiz runs) addressable by an opaque ID between requests.
// Sessions idle longer than the TTL are evicted and handed to an eviction
// hook so their timers and speech can be released.
package apisession

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"docentgo/pkg/clock"
)

// cleanupInterval is how often Get() triggers lazy eviction of expired entries.
const cleanupInterval = 100

type entry[T any] struct {
	value      *T
	lastAccess time.Time
}

// Store is a typed, thread-safe session registry.
type Store[T any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[T]
	ttl      time.Duration
	clk      clock.Clock
	onEvict  func(id string, v *T)
	getCalls int
}

// New creates a Store that evicts sessions inactive longer than ttl.
// onEvict may be nil; it runs outside the store lock.
func New[T any](ttl time.Duration, clk clock.Clock, onEvict func(id string, v *T)) *Store[T] {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		clk:     clk,
		onEvict: onEvict,
	}
}

// Create registers v under a fresh random ID.
func (s *Store[T]) Create(v *T) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &entry[T]{value: v, lastAccess: s.clk.Now()}
	s.mu.Unlock()
	return id
}

// Get returns the session and refreshes its last-access timestamp.
func (s *Store[T]) Get(id string) (*T, bool) {
	s.mu.Lock()
	s.getCalls++
	var evicted map[string]*T
	if s.getCalls%cleanupInterval == 0 {
		evicted = s.expiredLocked()
	}
	e, ok := s.entries[id]
	if ok {
		e.lastAccess = s.clk.Now()
	}
	s.mu.Unlock()

	s.evict(evicted)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Delete removes a session and runs the eviction hook for it.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok {
		s.evict(map[string]*T{id: e.value})
	}
	return ok
}

// Cleanup evicts all sessions that have been inactive longer than the TTL
// and reports how many went.
func (s *Store[T]) Cleanup() int {
	s.mu.Lock()
	evicted := s.expiredLocked()
	s.mu.Unlock()

	s.evict(evicted)
	return len(evicted)
}

// Close evicts every session.
func (s *Store[T]) Close() {
	s.mu.Lock()
	all := make(map[string]*T, len(s.entries))
	for id, e := range s.entries {
		all[id] = e.value
	}
	s.entries = make(map[string]*entry[T])
	s.mu.Unlock()

	s.evict(all)
}

func (s *Store[T]) expiredLocked() map[string]*T {
	cutoff := s.clk.Now().Add(-s.ttl)
	var out map[string]*T
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			if out == nil {
				out = make(map[string]*T)
			}
			out[id] = e.value
			delete(s.entries, id)
		}
	}
	return out
}

func (s *Store[T]) evict(m map[string]*T) {
	if s.onEvict == nil {
		return
	}
	for id, v := range m {
		s.onEvict(id, v)
	}
}

// Len returns the number of active sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
