// Package cache abstracts the byte cache used for sessions and pushed
// authorization payloads.
//
// Backends:
//   - memory (in-process, development and tests)
//   - redis (shared, production)
package cache

import "time"

// Cache is a TTL byte cache.
//
// GetDel is the atomic one-shot read: of N concurrent calls for the same key
// at most one receives the value. Single-use artifacts (pushed authorization
// payloads) must be redeemed through it, never via Get followed by Delete.
type Cache interface {
	Get(key string) ([]byte, bool)
	GetDel(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
