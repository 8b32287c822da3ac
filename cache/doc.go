// Package cache provides the in-memory response cache used by the guard
// pipeline.
//
// Store is a generic key/value store with per-entry TTL and least recently
// used eviction once MaxSize entries are held. Expired entries are removed
// lazily on read and eagerly by Cleanup or a background janitor. Keyer
// derives deterministic keys for HTTP-style requests, and Policy decides
// which methods are cacheable and for how long.
package cache
