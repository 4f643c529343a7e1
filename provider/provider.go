// Package provider defines the storage abstraction used by modelcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set or SetMany for a key (no
// prepended/appended metadata, no re-encoding, no mutation).
//
// Important: the keyspace "model:" is owned by modelcache. External code MUST NOT
// write values under this prefix. Foreign writes are treated as corruption by the
// wire-format validation and deleted.
package provider

import (
	"context"
	"time"
)

// Item is one entry of a SetMany call.
type Item struct {
	Key   string
	Value []byte
	Cost  int64
}

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (ttl <= 0 => no expiry). May ignore cost
	// if unsupported. Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Add stores value only when key holds no live entry, like SET NX. It
	// reports false when the key exists or the write was rejected. Read-through
	// population uses it so a concurrent delete's tombstone is never replaced.
	Add(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// SetMany stores all items with the same TTL. Readers must never observe
	// a subset of the items when the implementation documents atomic visibility;
	// otherwise items are applied in order. ok=false if any item was rejected.
	SetMany(ctx context.Context, items []Item, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
