package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// APIKey describes a registered API key.
type APIKey struct {
	// ID names the key in logs and admin output.
	ID string

	// KeyHash is the SHA-256 hex digest of the raw key. See HashAPIKey.
	KeyHash string

	// ExpiresAt is when the key stops being accepted (zero = never).
	ExpiresAt time.Time
}

// APIKeyStore looks up registered API keys.
type APIKeyStore interface {
	// Lookup retrieves a key by its hash. It returns nil if not found.
	Lookup(ctx context.Context, keyHash string) (*APIKey, error)
}

// HashAPIKey returns the SHA-256 hex digest stored for key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey // keyed by hash
}

// NewMemoryAPIKeyStore creates a store holding keys.
func NewMemoryAPIKeyStore(keys ...APIKey) *MemoryAPIKeyStore {
	s := &MemoryAPIKeyStore{keys: make(map[string]*APIKey, len(keys))}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Lookup implements APIKeyStore.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add registers k, replacing any key with the same hash.
func (s *MemoryAPIKeyStore) Add(k APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.KeyHash] = &k
}

// Remove unregisters the key with keyHash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// Len returns the number of registered keys.
func (s *MemoryAPIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var _ APIKeyStore = (*MemoryAPIKeyStore)(nil)
