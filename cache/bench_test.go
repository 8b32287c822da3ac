package cache

import (
	"fmt"
	"net/url"
	"testing"
	"time"
)

// BenchmarkStore_Get_Hit measures cache hit performance.
func BenchmarkStore_Get_Hit(b *testing.B) {
	s := NewStore[[]byte](Config{})
	s.Set("key", []byte("value"), time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Get("key")
	}
}

// BenchmarkStore_Get_Miss measures cache miss performance.
func BenchmarkStore_Get_Miss(b *testing.B) {
	s := NewStore[[]byte](Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Get("missing")
	}
}

// BenchmarkStore_Set_Evicting measures inserts into a full store.
func BenchmarkStore_Set_Evicting(b *testing.B) {
	s := NewStore[[]byte](Config{MaxSize: 100})
	value := []byte("test value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set(fmt.Sprintf("key-%d", i), value, time.Hour)
	}
}

// BenchmarkStore_Set_SameKey measures overwrite performance.
func BenchmarkStore_Set_SameKey(b *testing.B) {
	s := NewStore[[]byte](Config{})
	value := []byte("test value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set("same-key", value, time.Hour)
	}
}

// BenchmarkStore_Concurrent_ReadWrite measures mixed concurrent operations.
func BenchmarkStore_Concurrent_ReadWrite(b *testing.B) {
	s := NewStore[[]byte](Config{})
	for i := 0; i < 100; i++ {
		s.Set(fmt.Sprintf("key-%d", i), []byte("value"), time.Hour)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("key-%d", i%100)
			if i%4 == 0 {
				// 25% writes
				s.Set(key, []byte("new-value"), time.Hour)
			} else {
				// 75% reads
				_, _ = s.Get(key)
			}
			i++
		}
	})
}

// BenchmarkStore_Cleanup measures a sweep over a mostly live store.
func BenchmarkStore_Cleanup(b *testing.B) {
	s := NewStore[int](Config{MaxSize: 10000})
	for i := 0; i < 1000; i++ {
		s.Set(fmt.Sprintf("key-%d", i), i, time.Hour)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Cleanup()
	}
}

// BenchmarkRequestKeyer_Key measures key derivation.
func BenchmarkRequestKeyer_Key(b *testing.B) {
	keyer := NewRequestKeyer()
	query := url.Values{"q": {"golang"}, "limit": {"10"}, "tag": {"a", "b"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = keyer.Key("GET", "/search", query)
	}
}

// BenchmarkRequestKeyer_Key_Concurrent measures concurrent key derivation.
func BenchmarkRequestKeyer_Key_Concurrent(b *testing.B) {
	keyer := NewRequestKeyer()
	query := url.Values{"q": {"golang"}}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = keyer.Key("GET", "/search", query)
		}
	})
}

// BenchmarkPolicy_Cacheable measures method checks.
func BenchmarkPolicy_Cacheable(b *testing.B) {
	p := DefaultPolicy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Cacheable("GET")
	}
}

// BenchmarkValidateKey measures key validation.
func BenchmarkValidateKey(b *testing.B) {
	key := "http:GET:/users:0123456789abcdef"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ValidateKey(key)
	}
}
