package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FileVersion is the current version of the key file format.
const FileVersion = 1

// keyFile is the on-disk representation.
// CBOR encoding uses integer keys for compactness.
type keyFile struct {
	Version int                 `cbor:"1,keyasint"`
	SavedAt time.Time           `cbor:"2,keyasint"`
	Keys    map[string]keyEntry `cbor:"3,keyasint"`
}

// keyEntry holds one account key and its pairing time.
type keyEntry struct {
	Key      []byte    `cbor:"1,keyasint"`
	PairedAt time.Time `cbor:"2,keyasint"`
}

// FileStore persists account keys to a CBOR file. Keys live in memory between
// Save/Load calls; Put saves eagerly so a crash never loses a fresh pairing.
type FileStore struct {
	mu   sync.Mutex
	path string
	keys map[string]keyEntry
}

// NewFileStore creates a file-backed account-key store at path.
// Call Load to read any existing file.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		keys: make(map[string]keyEntry),
	}
}

// Get returns the account key for an identity.
func (s *FileStore) Get(identity string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.keys[identity]
	if !exists {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(entry.Key))
	copy(out, entry.Key)
	return out, nil
}

// Put stores the account key for an identity and saves immediately.
func (s *FileStore) Put(identity string, key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make([]byte, len(key))
	copy(owned, key)
	s.keys[identity] = keyEntry{Key: owned, PairedAt: time.Now()}
	return s.saveLocked()
}

// Delete removes the account key for an identity and saves immediately.
func (s *FileStore) Delete(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[identity]; !exists {
		return ErrKeyNotFound
	}
	delete(s.keys, identity)
	return s.saveLocked()
}

// List returns all identities with stored keys.
func (s *FileStore) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities := make([]string, 0, len(s.keys))
	for id := range s.keys {
		identities = append(identities, id)
	}
	return identities
}

// Save persists the store to disk.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the key file. Caller holds s.mu.
func (s *FileStore) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := cbor.Marshal(&keyFile{
		Version: FileVersion,
		SavedAt: time.Now(),
		Keys:    s.keys,
	})
	if err != nil {
		return fmt.Errorf("failed to encode key file: %w", err)
	}

	// Account keys are secrets; owner-only permissions.
	return os.WriteFile(s.path, data, 0600)
}

// Load reads the key file from disk. A missing file is an empty store.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file keyFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to decode key file: %w", err)
	}
	if file.Version != FileVersion {
		return fmt.Errorf("unsupported key file version %d", file.Version)
	}

	if file.Keys == nil {
		file.Keys = make(map[string]keyEntry)
	}
	s.keys = file.Keys
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)
