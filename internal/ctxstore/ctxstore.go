// File: internal/ctxstore/ctxstore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// contextStore is the default api.Context implementation: a concurrency-safe
// key/value store with explicit per-key propagation flags and optional TTL
// expiry, used to carry request-scoped data across a Worker boundary without
// pulling in the standard context.Context cancellation tree.

package ctxstore

import (
	"sync"
	"time"

	"github.com/momentics/tsignal-go/api"
)

var _ api.Context = (*Store)(nil)

type entry struct {
	value      any
	propagated bool
	expiresAt  time.Time // zero value means no expiration
}

// Store implements api.Context.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty, ready-to-use Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Set assigns a value for a key, optionally marking it as propagated to
// clones made via Clone.
func (s *Store) Set(key string, value any, propagated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	e.value = value
	e.propagated = propagated
	s.entries[key] = e
}

// Get fetches a value, returning (value, exists). An expired key is treated
// as absent and lazily purged.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

// Delete removes a value/key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clone returns a shallow copy containing only keys marked propagated.
func (s *Store) Clone() api.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	child := New()
	for k, e := range s.entries {
		if e.propagated {
			child.entries[k] = e
		}
	}
	return child
}

// WithExpiration sets a TTL for key, in nanoseconds from now. A non-existent
// key is a no-op.
func (s *Store) WithExpiration(key string, ttlNanos int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.expiresAt = time.Now().Add(time.Duration(ttlNanos))
	s.entries[key] = e
}

// IsPropagated checks if a key is marked for propagation.
func (s *Store) IsPropagated(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].propagated
}

// Keys returns all present keys, including expired-but-not-yet-purged ones.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
