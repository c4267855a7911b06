package keystore

import "sync"

// MemoryStore is an in-memory implementation of the Store interface.
// Primarily useful for testing and hosts that don't need persistence.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewMemoryStore creates a new in-memory account-key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

// Get returns the account key for an identity.
func (s *MemoryStore) Get(identity string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, exists := s.keys[identity]
	if !exists {
		return nil, ErrKeyNotFound
	}
	// Callers hold a borrowed copy; never hand out the owned slice.
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// Put stores the account key for an identity.
func (s *MemoryStore) Put(identity string, key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make([]byte, len(key))
	copy(owned, key)
	s.keys[identity] = owned
	return nil
}

// Delete removes the account key for an identity.
func (s *MemoryStore) Delete(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[identity]; !exists {
		return ErrKeyNotFound
	}
	delete(s.keys, identity)
	return nil
}

// List returns all identities with stored keys.
func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identities := make([]string, 0, len(s.keys))
	for id := range s.keys {
		identities = append(identities, id)
	}
	return identities
}

// Save is a no-op for the in-memory store.
func (s *MemoryStore) Save() error { return nil }

// Load is a no-op for the in-memory store.
func (s *MemoryStore) Load() error { return nil }

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
