package modelcache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/modelcache/codec"
	pr "github.com/unkn0wn-root/modelcache/provider"
)

// SetCostFunc computes the provider cost of a stored entry.
// members is the number of keys held by a named set and 0 otherwise.
type SetCostFunc func(key string, raw []byte, isSet bool, members int) int64

// Status is the outcome of a cache lookup.
type Status uint8

const (
	// Miss means nothing usable is cached; fall back to the datastore.
	Miss Status = iota
	// Hit means a value was found and decoded.
	Hit
	// Tombstoned means the entry was recently deleted. Callers treat it
	// like Miss, but must not populate the key until the tombstone expires.
	Tombstoned
)

func (s Status) String() string {
	switch s {
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	case Tombstoned:
		return "tombstoned"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Found reports whether the lookup produced a valid record.
func (s Status) Found() bool { return s == Hit }

// Cache is the record cache for one record type R.
type Cache[R any] interface {
	Enabled() bool
	Close(context.Context) error
	Descriptor() Descriptor

	// Key returns the object key of r for attrs (default: the primary attribute).
	Key(r R, attrs ...string) (string, error)

	// Records
	Store(ctx context.Context, r R) (key string, err error)
	StoreByAttribute(ctx context.Context, r R, attrs ...string) (refKey string, err error)
	StoreUnique(ctx context.Context, r R) (refKeys []string, err error)
	Get(ctx context.Context, pk any) (R, Status, error)
	GetBy(ctx context.Context, vary VaryBy) (R, Status, error)
	Delete(ctx context.Context, r R, opts ...DeleteOption) error
	DeleteByPK(ctx context.Context, pk any, opts ...DeleteOption) error
	DeleteKey(ctx context.Context, key string, opts ...DeleteOption) error

	// Read-through population. Unlike Store*, these never replace an entry
	// already present, so a tombstone written while the caller was reading
	// the datastore survives. ok reports whether the record is now cached,
	// either by this call or by an earlier write.
	Populate(ctx context.Context, r R) (ok bool, err error)
	PopulateByAttribute(ctx context.Context, r R, attrs ...string) (ok bool, err error)

	// Named sets
	StoreSet(ctx context.Context, items []R, name string, vary VaryBy) (key string, err error)
	GetSet(ctx context.Context, name string, vary VaryBy) (*Sequence[R], Status, error)
	DeleteSet(ctx context.Context, name string, vary VaryBy, opts ...DeleteOption) error
	// PopulateSet adds the members and then the set. The set is skipped when
	// any member could not be cached, e.g. because it is tombstoned.
	PopulateSet(ctx context.Context, items []R, name string, vary VaryBy) (ok bool, err error)
}

// Options tune the behavior of a record cache.
// Descriptor, Provider and Codec are required; others have sensible defaults.
type Options[R any] struct {
	// Required
	Descriptor Descriptor
	Provider   pr.Provider
	Codec      c.Codec[R]

	Logger         Logger           // if nil, NopLogger is used
	Hooks          Hooks            // if nil, NopHooks is used
	DefaultTTL     time.Duration    // records, references and sets; 0 => no expiry
	TombstoneDelay time.Duration    // 0 => 5s
	Disabled       bool             // default false (enabled)
	ComputeSetCost SetCostFunc      // default 1
	Now            func() time.Time // default time.Now; stamps tombstone deadlines
}

func New[R any](opts Options[R]) (Cache[R], error) {
	return newCache[R](opts)
}
