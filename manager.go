package modelcache

import (
	"context"
	"errors"
	"sort"
)

// Source is the datastore behind the cache.
type Source[R any] interface {
	// Load returns the single record matching vary (primary or unique attributes).
	Load(ctx context.Context, vary VaryBy) (R, error)
	// Query returns the ordered records of the named set.
	Query(ctx context.Context, name string, vary VaryBy) ([]R, error)
}

// Manager reads through the cache: lookups try the cache first and fall back
// to the Source, populating the cache with what was loaded. Population only
// fills free keys, so a tombstone written by a delete that ran while the
// Source was read is never replaced. Backend errors are returned, not
// bypassed.
type Manager[R any] struct {
	cache Cache[R]
	src   Source[R]
}

func NewManager[R any](c Cache[R], src Source[R]) *Manager[R] {
	return &Manager[R]{cache: c, src: src}
}

// Get returns the record with primary key pk.
func (m *Manager[R]) Get(ctx context.Context, pk any) (R, error) {
	var zero R
	v, st, err := m.cache.Get(ctx, pk)
	if err != nil {
		return zero, err
	}
	if st == Hit {
		return v, nil
	}

	v, err = m.src.Load(ctx, VaryBy{m.cache.Descriptor().Primary: pk})
	if err != nil {
		return zero, err
	}
	if st == Miss {
		if _, err := m.cache.Populate(ctx, v); err != nil {
			return zero, err
		}
	}
	return v, nil
}

// GetBy returns the record matching vary. vary should name unique
// attributes; the cache is populated with a reference for them.
func (m *Manager[R]) GetBy(ctx context.Context, vary VaryBy) (R, error) {
	var zero R
	primary := m.cache.Descriptor().Primary
	if pk, ok := vary[primary]; ok && len(vary) == 1 {
		return m.Get(ctx, pk)
	}

	v, st, err := m.cache.GetBy(ctx, vary)
	if err != nil {
		return zero, err
	}
	if st == Hit {
		return v, nil
	}

	v, err = m.src.Load(ctx, vary)
	if err != nil {
		return zero, err
	}
	if st == Miss {
		attrs := make([]string, 0, len(vary))
		for k := range vary {
			attrs = append(attrs, k)
		}
		sort.Strings(attrs)
		if _, err := m.cache.PopulateByAttribute(ctx, v, attrs...); err != nil {
			return zero, err
		}
	}
	return v, nil
}

// List returns the named set. A cached set with a missing member is dropped
// and rebuilt from the Source. The set is not cached while any member is
// tombstoned.
func (m *Manager[R]) List(ctx context.Context, name string, vary VaryBy) ([]R, error) {
	seq, st, err := m.cache.GetSet(ctx, name, vary)
	if err != nil {
		return nil, err
	}
	if st == Hit {
		items, err := seq.Collect(ctx)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, ErrSetResolution) {
			return nil, err
		}
		if err := m.cache.DeleteSet(ctx, name, vary, Force()); err != nil {
			return nil, err
		}
		st = Miss
	}

	items, err := m.src.Query(ctx, name, vary)
	if err != nil {
		return nil, err
	}
	if st == Tombstoned {
		return items, nil
	}
	if _, err := m.cache.PopulateSet(ctx, items, name, vary); err != nil {
		return nil, err
	}
	return items, nil
}
