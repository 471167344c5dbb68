// Package store provides the shared key-value store used for one-time token
// records and rate-limit counters. All operations are key-scoped; callers
// needing cross-key invariants must sequence the operations themselves.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps transport-level store failures. Callers treat it as a
// hard dependency failure rather than an empty read.
var ErrUnavailable = errors.New("store unavailable")

// TTL sentinel values, mirroring redis TTL semantics.
const (
	TTLMissing  = -2 * time.Second
	TTLNoExpiry = -1 * time.Second
)

// Store is the contract both the redis-backed and in-memory implementations
// satisfy. Every method is safe for concurrent callers on the same key.
type Store interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetWithTTL writes value under key, replacing any prior value and
	// expiry. A non-positive ttl stores the key without expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Increment atomically adds one to the integer at key, creating it at 1
	// (with no expiry) when absent, and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)

	// TTL reports the remaining lifetime of key: TTLMissing when the key
	// does not exist, TTLNoExpiry when it exists without an expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// SetExpiry (re)assigns an expiry to an existing key.
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error

	// CompareAndSwap atomically replaces the value at key with next if and
	// only if the current value equals prev, preserving the key's remaining
	// TTL. Returns whether the swap happened. This is the serialization
	// point for one-time token consumption.
	CompareAndSwap(ctx context.Context, key, prev, next string) (bool, error)
}
