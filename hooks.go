package modelcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Outcome of every Get/GetBy. typ is the type label.
	Lookup(typ string, status Status)

	// A reference entry pointed at a record entry that is gone.
	// The reference is left in place.
	DanglingReference(refKey, targetKey string)

	// A named set member could not be resolved during the first traversal.
	SetResolutionFailed(setKey, memberKey string)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "unexpected_kind", "value_decode", "foreign_reference"}
	CorruptEntry(storageKey, reason string)

	// Provider returned ok=false on Set/SetMany (backpressure/eviction).
	ProviderSetRejected(storageKey string, many bool)

	// A tombstone was written.
	Tombstoned(storageKey string, delay time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(string, Status)              {}
func (NopHooks) DanglingReference(string, string)   {}
func (NopHooks) SetResolutionFailed(string, string) {}
func (NopHooks) CorruptEntry(string, string)        {}
func (NopHooks) ProviderSetRejected(string, bool)   {}
func (NopHooks) Tombstoned(string, time.Duration)   {}
