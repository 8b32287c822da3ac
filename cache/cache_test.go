package cache

import (
	"strings"
	"testing"
	"time"
)

// TestCacheKey_Validation tests key validation rules.
func TestCacheKey_Validation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"valid key", "http:GET:/users:abc123", nil},
		{"too long", strings.Repeat("x", MaxKeyLength+1), ErrKeyTooLong},
		{"contains newline", "key\nwith\nnewlines", ErrInvalidKey},
		{"contains carriage return", "key\rwith\rreturns", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"max length exactly", strings.Repeat("x", MaxKeyLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

// TestCacheInterface_CompileCheck verifies the Cache interface contract.
func TestCacheInterface_CompileCheck(t *testing.T) {
	var _ Cache[[]byte] = (*mockCache)(nil)
	var _ Cache[[]byte] = NewStore[[]byte](Config{})
}

type mockCache struct{}

func (m *mockCache) Get(key string) ([]byte, bool)                  { return nil, false }
func (m *mockCache) Set(key string, value []byte, ttl time.Duration) {}
func (m *mockCache) Delete(key string) bool                          { return false }

func TestEvent_String(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{EventHit, "hit"},
		{EventMiss, "miss"},
		{EventSet, "set"},
		{EventDelete, "delete"},
		{EventEvict, "evict"},
		{EventExpire, "expire"},
		{Event(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.event.String(); got != tt.want {
			t.Errorf("Event(%d).String() = %q, want %q", tt.event, got, tt.want)
		}
	}
}
