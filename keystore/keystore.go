// Package keystore holds per-provider credentials and resolves the
// effective key for a (provider, model) pair. A non-empty model-specific
// key always takes precedence over the provider's master key.
package keystore

import (
	"sync"

	"github.com/allmhq/allm"
)

type entry struct {
	provider allm.Provider
	model    string // empty = master key
}

// Store is safe for concurrent use: actors resolve keys while the
// orchestrator applies updates. Apply holds the write lock for the whole
// batch, so a concurrent Resolve sees either the full pre-update or the
// full post-update state, never a partial one.
type Store struct {
	mu   sync.RWMutex
	keys map[entry]string
}

// New creates an empty store. When masterKey is non-empty it seeds the
// default provider's master credential.
func New(masterKey string) *Store {
	s := &Store{keys: make(map[entry]string)}
	if masterKey != "" {
		s.keys[entry{provider: allm.DefaultProvider}] = masterKey
	}
	return s
}

// Resolve returns the effective key for a (provider, model) pair:
// the exact (provider, model) entry if set, else the provider's master
// entry, else a key_not_found error.
func (s *Store) Resolve(provider allm.Provider, model string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if model != "" {
		if key, ok := s.keys[entry{provider: provider, model: model}]; ok && key != "" {
			return key, nil
		}
	}
	if key, ok := s.keys[entry{provider: provider}]; ok && key != "" {
		return key, nil
	}
	return "", allm.NewKeyNotFound(provider, model)
}

// Apply replaces or inserts all entries in one logical step. A spec with
// an empty Key deletes its entry.
func (s *Store) Apply(specs []allm.APIKeySpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spec := range specs {
		e := entry{provider: spec.Provider, model: spec.Model}
		if spec.Key == "" {
			delete(s.keys, e)
			continue
		}
		s.keys[e] = spec.Key
	}
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
