package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Keyer derives deterministic cache keys for requests.
//
// Contract:
// - Determinism: the same method, path and query produce the same key,
//   regardless of parameter order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(method, path string, query url.Values) (string, error)
}

// RequestKeyer generates SHA-256 based request keys.
type RequestKeyer struct{}

// NewRequestKeyer creates a new request keyer.
func NewRequestKeyer() *RequestKeyer {
	return &RequestKeyer{}
}

// Key generates a deterministic cache key.
// Format: http:<METHOD>:<path>:<hash>
// where hash is the first 16 hex characters of SHA-256 over the canonical
// JSON form of the query, with keys sorted and repeated values kept in order.
func (k *RequestKeyer) Key(method, path string, query url.Values) (string, error) {
	params := make(map[string]any, len(query))
	for name, values := range query {
		vals := make([]any, len(values))
		for i, v := range values {
			vals[i] = v
		}
		params[name] = vals
	}

	hash, err := HashValue(params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http:%s:%s:%s", strings.ToUpper(method), path, hash), nil
}

// HashValue returns the 16 hex character SHA-256 prefix of the canonical
// JSON form of v. Custom endpoint key functions use it to fold request
// bodies or headers into a key.
func HashValue(v any) (string, error) {
	// Canonicalize input to ensure deterministic serialization
	canonical, err := canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8]), nil // First 8 bytes = 16 hex chars
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	// For maps, sort keys for determinism
	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		// For other types, use standard JSON encoding
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	// Sort keys
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build ordered JSON object
	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		// Key
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		// Value (recursively canonicalize)
		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure RequestKeyer implements Keyer
var _ Keyer = (*RequestKeyer)(nil)
