package cache

// Event identifies a cache lifecycle event.
type Event int

const (
	EventHit Event = iota
	EventMiss
	EventSet
	EventDelete
	EventEvict
	EventExpire
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventHit:
		return "hit"
	case EventMiss:
		return "miss"
	case EventSet:
		return "set"
	case EventDelete:
		return "delete"
	case EventEvict:
		return "evict"
	case EventExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// Observer receives cache events. Implementations must be safe for
// concurrent use and must not call back into the Store.
type Observer interface {
	OnCacheEvent(event Event, key string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event Event, key string)

// OnCacheEvent calls f.
func (f ObserverFunc) OnCacheEvent(event Event, key string) {
	f(event, key)
}
