package keystore

import "errors"

// Store errors.
var (
	ErrKeyNotFound = errors.New("account key not found")
	ErrInvalidKey  = errors.New("invalid account key")
)

// Store defines durable account-key storage keyed by device identity.
// Implementations must be safe for concurrent access; callers for different
// identities must not contend beyond the store's own consistency needs.
type Store interface {
	// Get returns the account key for an identity.
	// Returns ErrKeyNotFound when no key has been stored.
	Get(identity string) ([]byte, error)

	// Put stores the account key for an identity, replacing any existing key.
	Put(identity string, key []byte) error

	// Delete removes the account key for an identity.
	// Returns ErrKeyNotFound when no key exists.
	Delete(identity string) error

	// List returns all identities with stored keys.
	List() []string

	// Save persists the store to its backing storage.
	// For in-memory stores, this is a no-op.
	Save() error

	// Load reads the store from its backing storage.
	// For in-memory stores, this is a no-op.
	Load() error
}
