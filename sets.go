package modelcache

import (
	"context"

	"github.com/unkn0wn-root/modelcache/internal/wire"
)

// StoreSet stores the ordered primary keys of items under the named key.
// The records themselves are not written; callers populate them first.
func (c *cache[R]) StoreSet(ctx context.Context, items []R, name string, vary VaryBy) (string, error) {
	if name == "" {
		return "", ErrEmptySetName
	}
	key := NamedKey(c.desc.Type, name, vary)
	members := make([]string, len(items))
	for i, it := range items {
		k, err := c.Key(it)
		if err != nil {
			return "", err
		}
		members[i] = k
	}
	if !c.enabled {
		return key, nil
	}

	raw, err := wire.EncodeSet(members)
	if err != nil {
		return "", err
	}
	ok, err := c.provider.Set(ctx, key, raw, c.computeSetCost(key, raw, true, len(members)), c.defaultTTL)
	if err != nil {
		return "", err
	}
	if !ok {
		c.rejected(key, false)
	}
	return key, nil
}

func (c *cache[R]) PopulateSet(ctx context.Context, items []R, name string, vary VaryBy) (bool, error) {
	if name == "" {
		return false, ErrEmptySetName
	}
	key := NamedKey(c.desc.Type, name, vary)
	members := make([]string, len(items))
	for i, it := range items {
		k, err := c.Key(it)
		if err != nil {
			return false, err
		}
		members[i] = k
	}
	if !c.enabled {
		return false, nil
	}

	all := true
	for i, it := range items {
		ok, err := c.populate(ctx, members[i], it)
		if err != nil {
			return false, err
		}
		all = all && ok
	}
	if !all {
		c.log.Debug("named set not populated: member not cached", Fields{"set": key})
		return false, nil
	}

	raw, err := wire.EncodeSet(members)
	if err != nil {
		return false, err
	}
	ok, err := c.provider.Add(ctx, key, raw, c.computeSetCost(key, raw, true, len(members)), c.defaultTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		// a concurrent reader may have added the same set
		_, st, err := c.load(ctx, key)
		return st == Hit, err
	}
	return true, nil
}

// GetSet returns a lazy Sequence over the named set. Nothing but the set entry
// is read until the Sequence is traversed. An empty stored set is a Hit.
func (c *cache[R]) GetSet(ctx context.Context, name string, vary VaryBy) (*Sequence[R], Status, error) {
	if name == "" {
		return nil, Miss, ErrEmptySetName
	}
	if !c.enabled {
		return nil, Miss, nil
	}
	key := NamedKey(c.desc.Type, name, vary)
	e, st, err := c.load(ctx, key)
	if err != nil || st != Hit {
		return nil, st, err
	}
	if e.Kind != wire.KindSet {
		c.heal(ctx, key, "unexpected_kind")
		return nil, Miss, nil
	}
	seq := newSequence[R](key, e.Keys, c.getRecord)
	seq.onFail = func(member string) {
		c.hooks.SetResolutionFailed(key, member)
		c.log.Debug("named set member missing", Fields{"set": key, "member": member})
	}
	return seq, Hit, nil
}
