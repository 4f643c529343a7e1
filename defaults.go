package modelcache

import "time"

// DefaultTombstoneDelay bounds how long a deleted record's key stays blocked.
const DefaultTombstoneDelay = 5 * time.Second

const keyPrefix = "model:"

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
