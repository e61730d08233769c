// Package params implements the typed avatar parameter cache shared by
// the send and receive paths.
package params

import (
	"sync"

	"github.com/oscbridge-project/oscbridge/internal/osc"
)

// Store maps parameter names to their last known typed value. It is
// written by both the caller (local sets) and the receive loop (network
// updates), so all access is serialized through an RWMutex.
type Store struct {
	mu     sync.RWMutex
	values map[string]osc.Value
}

// NewStore creates an empty parameter store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]osc.Value),
	}
}

// Set unconditionally overwrites the cached value for name.
func (s *Store) Set(name string, v osc.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

// PutIfChanged writes v through and reports whether it differed from the
// cached value (or was absent). This is the sole gate for firing change
// notifications on the receive path, so retransmitted identical updates
// produce no duplicate events.
func (s *Store) PutIfChanged(name string, v osc.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.values[name]; ok && prev.Equal(v) {
		return false
	}
	s.values[name] = v
	return true
}

// Get returns the cached value for name regardless of its variant.
func (s *Store) Get(name string) (osc.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// get returns the cached value only when it holds the requested variant.
// A cached value of a different variant yields absent, not a coercion.
func (s *Store) get(name string, kind osc.Kind) (osc.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[name]
	if !ok || v.Kind() != kind {
		return osc.Value{}, false
	}
	return v, true
}

// Int32 returns the cached int32 value for name, if one exists.
func (s *Store) Int32(name string) (int32, bool) {
	v, ok := s.get(name, osc.KindInt32)
	return v.Int32(), ok
}

// Float32 returns the cached float32 value for name, if one exists.
func (s *Store) Float32(name string) (float32, bool) {
	v, ok := s.get(name, osc.KindFloat32)
	return v.Float32(), ok
}

// Bool returns the cached bool value for name, if one exists.
func (s *Store) Bool(name string) (bool, bool) {
	v, ok := s.get(name, osc.KindBool)
	return v.Bool(), ok
}

// Snapshot returns a copy of the whole mapping.
func (s *Store) Snapshot() map[string]osc.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]osc.Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Len returns the number of cached parameters.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Clear removes every entry. Called only at client teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]osc.Value)
}
