package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonwraymond/apiguard/internal/janitor"
)

// Default store values.
const (
	DefaultTTL             = 300 * time.Second
	DefaultMaxSize         = 1000
	DefaultCleanupInterval = time.Minute

	// FallbackEntrySize is recorded for values that cannot be JSON encoded.
	FallbackEntrySize = 1024
)

// Config configures a Store.
type Config struct {
	// DefaultTTL applies when Set is called with a non-positive ttl.
	// Default: 300s
	DefaultTTL time.Duration

	// MaxSize is the number of entries held before the least recently
	// accessed one is evicted.
	// Default: 1000
	MaxSize int

	// Observer receives cache events. Optional.
	Observer Observer

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Items          int   `json:"items"`
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	Evictions      int64 `json:"evictions"`
	Expirations    int64 `json:"expirations"`
	Sets           int64 `json:"sets"`
	Deletes        int64 `json:"deletes"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`

	// HitRate is hits/(hits+misses), 0 before any lookup.
	HitRate float64 `json:"hitRate"`
}

type entry[V any] struct {
	key          string
	value        V
	expiresAt    time.Time
	lastAccessed time.Time
	accessCount  int64
	sizeBytes    int64
}

type event struct {
	kind Event
	key  string
}

// Store is an in-memory TTL cache with LRU eviction.
//
// The recency list is ordered by last access, most recent at the front, so
// the eviction victim is always the back element.
type Store[V any] struct {
	config Config

	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	size    int64
	hits    int64
	misses  int64
	evicted int64
	expired int64
	sets    int64
	deletes int64

	janitor *janitor.Janitor
}

// NewStore creates a new store.
func NewStore[V any](config Config) *Store[V] {
	// Apply defaults
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultTTL
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Store[V]{
		config: config,
		items:  make(map[string]*list.Element),
		lru:    list.New(),
	}
}

// Config returns the effective configuration.
func (s *Store[V]) Config() Config {
	return s.config
}

// Get returns the value for key. Expired entries are removed and reported
// as a miss.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V

	s.mu.Lock()
	now := s.config.Now()
	el, ok := s.items[key]
	if !ok {
		s.misses++
		s.mu.Unlock()
		s.emit(event{EventMiss, key})
		return zero, false
	}

	e := el.Value.(*entry[V])
	if !now.Before(e.expiresAt) {
		s.removeElement(el)
		s.expired++
		s.misses++
		s.mu.Unlock()
		s.emit(event{EventExpire, key}, event{EventMiss, key})
		return zero, false
	}

	e.lastAccessed = now
	e.accessCount++
	s.lru.MoveToFront(el)
	s.hits++
	value := e.value
	s.mu.Unlock()

	s.emit(event{EventHit, key})
	return value, true
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// Inserting a new key into a full store first evicts the least recently
// accessed entry. Overwriting an existing key never evicts.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}
	size := entrySize(value)

	s.mu.Lock()
	now := s.config.Now()
	events := make([]event, 0, 2)

	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry[V])
		s.size -= e.sizeBytes
		e.value = value
		e.expiresAt = now.Add(ttl)
		e.lastAccessed = now
		e.sizeBytes = size
		s.size += size
		s.lru.MoveToFront(el)
	} else {
		if s.lru.Len() >= s.config.MaxSize {
			if victim := s.lru.Back(); victim != nil {
				s.removeElement(victim)
				s.evicted++
				events = append(events, event{EventEvict, victim.Value.(*entry[V]).key})
			}
		}
		s.items[key] = s.lru.PushFront(&entry[V]{
			key:          key,
			value:        value,
			expiresAt:    now.Add(ttl),
			lastAccessed: now,
			sizeBytes:    size,
		})
		s.size += size
	}
	s.sets++
	s.mu.Unlock()

	s.emit(append(events, event{EventSet, key})...)
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	el, ok := s.items[key]
	if ok {
		s.removeElement(el)
		s.deletes++
	}
	s.mu.Unlock()

	if ok {
		s.emit(event{EventDelete, key})
	}
	return ok
}

// Has reports whether key holds a live entry. It does not count as a
// lookup and does not change recency.
func (s *Store[V]) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	return s.config.Now().Before(el.Value.(*entry[V]).expiresAt)
}

// Clear removes every entry. Counters are kept.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*list.Element)
	s.lru.Init()
	s.size = 0
	s.mu.Unlock()
}

// Len returns the number of entries held, including expired entries not
// yet swept.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Cleanup removes all expired entries and returns how many were removed.
func (s *Store[V]) Cleanup() int {
	s.mu.Lock()
	now := s.config.Now()
	var events []event
	for el := s.lru.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry[V])
		if !now.Before(e.expiresAt) {
			s.removeElement(el)
			s.expired++
			events = append(events, event{EventExpire, e.key})
		}
		el = next
	}
	s.mu.Unlock()

	s.emit(events...)
	return len(events)
}

// Stats returns current store statistics.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Items:          s.lru.Len(),
		Hits:           s.hits,
		Misses:         s.misses,
		Evictions:      s.evicted,
		Expirations:    s.expired,
		Sets:           s.sets,
		Deletes:        s.deletes,
		TotalSizeBytes: s.size,
	}
	if lookups := s.hits + s.misses; lookups > 0 {
		stats.HitRate = float64(s.hits) / float64(lookups)
	}
	return stats
}

// StartJanitor runs Cleanup every interval until Close is called.
// Calling it more than once has no effect.
func (s *Store[V]) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.janitor != nil {
		return
	}
	s.janitor = janitor.Start(interval, func() { s.Cleanup() })
}

// Close stops the janitor and clears all entries. It is safe to call more
// than once.
func (s *Store[V]) Close() {
	s.mu.Lock()
	j := s.janitor
	s.janitor = nil
	s.mu.Unlock()

	j.Stop()
	s.Clear()
}

// removeElement must be called with s.mu held.
func (s *Store[V]) removeElement(el *list.Element) {
	e := s.lru.Remove(el).(*entry[V])
	delete(s.items, e.key)
	s.size -= e.sizeBytes
}

func (s *Store[V]) emit(events ...event) {
	if s.config.Observer == nil {
		return
	}
	for _, ev := range events {
		s.config.Observer.OnCacheEvent(ev.kind, ev.key)
	}
}

// entrySize approximates the memory held by v as the length of its JSON
// encoding.
func entrySize(v any) int64 {
	data, err := json.Marshal(v)
	if err != nil {
		return FallbackEntrySize
	}
	return int64(len(data))
}

var _ Cache[string] = (*Store[string])(nil)
