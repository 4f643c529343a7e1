package modelcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	c "github.com/unkn0wn-root/modelcache/codec"
	"github.com/unkn0wn-root/modelcache/internal/wire"
	pr "github.com/unkn0wn-root/modelcache/provider"
)

type cache[R any] struct {
	desc     Descriptor
	provider pr.Provider
	codec    c.Codec[R]
	log      Logger
	hooks    Hooks

	enabled bool

	defaultTTL     time.Duration
	tombstoneDelay time.Duration
	computeSetCost SetCostFunc
	now            func() time.Time

	// "model:<ns>.<name>[" - every primary object key of this type starts with it
	objectPrefix string
}

func newCache[R any](opts Options[R]) (*cache[R], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("modelcache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("modelcache: codec is required")
	}
	desc, err := opts.Descriptor.Normalize()
	if err != nil {
		return nil, err
	}

	c := &cache[R]{
		desc:         desc,
		provider:     opts.Provider,
		codec:        opts.Codec,
		enabled:      !opts.Disabled,
		defaultTTL:   opts.DefaultTTL,
		objectPrefix: keyPrefix + desc.Label() + "[",
	}

	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.tombstoneDelay = coalesce[time.Duration](opts.TombstoneDelay, DefaultTombstoneDelay)

	if opts.ComputeSetCost != nil {
		c.computeSetCost = opts.ComputeSetCost
	} else {
		c.computeSetCost = func(_ string, _ []byte, _ bool, _ int) int64 { return 1 }
	}
	if opts.Now != nil {
		c.now = opts.Now
	} else {
		c.now = time.Now
	}
	return c, nil
}

func (c *cache[R]) Enabled() bool          { return c.enabled }
func (c *cache[R]) Descriptor() Descriptor { return c.desc }

func (c *cache[R]) Close(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[R]) Key(r R, attrs ...string) (string, error) {
	return InstanceKey(c.desc, r, attrs...)
}

func (c *cache[R]) Store(ctx context.Context, r R) (string, error) {
	key, err := c.Key(r)
	if err != nil {
		return "", err
	}
	if !c.enabled {
		return key, nil
	}
	raw, err := c.encode(r)
	if err != nil {
		return "", err
	}
	ok, err := c.provider.Set(ctx, key, raw, c.computeSetCost(key, raw, false, 0), c.defaultTTL)
	if err != nil {
		return "", err
	}
	if !ok {
		c.rejected(key, false)
	}
	return key, nil
}

// StoreByAttribute writes the record and a reference from the attrs key to the
// record's primary key in one SetMany call. attrs must identify a single
// record across the type, otherwise lookups return whichever record was
// stored last under that key.
func (c *cache[R]) StoreByAttribute(ctx context.Context, r R, attrs ...string) (string, error) {
	if len(attrs) == 0 {
		return "", ErrNoAttributes
	}
	refs, err := c.storeWithRefs(ctx, r, [][]string{attrs})
	if err != nil {
		return "", err
	}
	return refs[0], nil
}

// StoreUnique writes the record and one reference per descriptor unique
// attribute in one SetMany call.
func (c *cache[R]) StoreUnique(ctx context.Context, r R) ([]string, error) {
	if len(c.desc.Unique) == 0 {
		_, err := c.Store(ctx, r)
		return nil, err
	}
	sets := make([][]string, len(c.desc.Unique))
	for i, u := range c.desc.Unique {
		sets[i] = []string{u}
	}
	return c.storeWithRefs(ctx, r, sets)
}

func (c *cache[R]) storeWithRefs(ctx context.Context, r R, attrSets [][]string) ([]string, error) {
	primary, err := c.Key(r)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(attrSets))
	for i, attrs := range attrSets {
		if refs[i], err = c.Key(r, attrs...); err != nil {
			return nil, err
		}
	}
	if !c.enabled {
		return refs, nil
	}

	raw, err := c.encode(r)
	if err != nil {
		return nil, err
	}
	// record first: providers without atomic SetMany then never expose a
	// reference before its target
	items := make([]pr.Item, 0, 1+len(refs))
	items = append(items, pr.Item{Key: primary, Value: raw, Cost: c.computeSetCost(primary, raw, false, 0)})
	for _, ref := range refs {
		if ref == primary {
			continue
		}
		b, err := wire.EncodeReference(primary)
		if err != nil {
			return nil, err
		}
		items = append(items, pr.Item{Key: ref, Value: b, Cost: c.computeSetCost(ref, b, false, 0)})
	}

	ok, err := c.provider.SetMany(ctx, items, c.defaultTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.rejected(primary, true)
	}
	return refs, nil
}

func (c *cache[R]) Populate(ctx context.Context, r R) (bool, error) {
	key, err := c.Key(r)
	if err != nil {
		return false, err
	}
	return c.populate(ctx, key, r)
}

// PopulateByAttribute adds the record and then the reference for attrs. The
// reference is only added while the record is a live Hit.
func (c *cache[R]) PopulateByAttribute(ctx context.Context, r R, attrs ...string) (bool, error) {
	if len(attrs) == 0 {
		return false, ErrNoAttributes
	}
	primary, err := c.Key(r)
	if err != nil {
		return false, err
	}
	ref, err := c.Key(r, attrs...)
	if err != nil {
		return false, err
	}
	ok, err := c.populate(ctx, primary, r)
	if err != nil || !ok || ref == primary {
		return ok, err
	}
	b, err := wire.EncodeReference(primary)
	if err != nil {
		return false, err
	}
	// an existing reference is kept; it either points here already or was
	// written by an explicit store
	if _, err := c.provider.Add(ctx, ref, b, c.computeSetCost(ref, b, false, 0), c.defaultTTL); err != nil {
		return false, err
	}
	return true, nil
}

// populate adds the record at key. A key that already holds a live record
// counts as cached; a tombstone or a rejected write does not.
func (c *cache[R]) populate(ctx context.Context, key string, r R) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	raw, err := c.encode(r)
	if err != nil {
		return false, err
	}
	ok, err := c.provider.Add(ctx, key, raw, c.computeSetCost(key, raw, false, 0), c.defaultTTL)
	if err != nil || ok {
		return ok, err
	}
	_, st, err := c.getRecord(ctx, key)
	if err != nil {
		return false, err
	}
	if st == Miss {
		c.rejected(key, false)
	}
	return st == Hit, nil
}

func (c *cache[R]) Get(ctx context.Context, pk any) (R, Status, error) {
	v, st, err := c.getRecord(ctx, ObjectKey(c.desc.Type, VaryBy{c.desc.Primary: pk}))
	if err == nil {
		c.hooks.Lookup(c.desc.Label(), st)
	}
	return v, st, err
}

// GetBy follows the reference stored at the vary key to its record. A vary
// holding only the primary attribute addresses the record directly.
// A reference whose record is gone yields Miss and is left in place.
func (c *cache[R]) GetBy(ctx context.Context, vary VaryBy) (R, Status, error) {
	var zero R
	if !c.enabled {
		return zero, Miss, nil
	}
	refKey := ObjectKey(c.desc.Type, vary)
	e, st, err := c.load(ctx, refKey)
	if err != nil {
		return zero, Miss, err
	}

	var v R
	switch {
	case st != Hit:
		v = zero
	case e.Kind == wire.KindRecord:
		v, st = c.decode(ctx, refKey, e.Payload)
	case e.Kind == wire.KindReference:
		if !strings.HasPrefix(e.Key, c.objectPrefix) {
			c.heal(ctx, refKey, "foreign_reference")
			v, st = zero, Miss
			break
		}
		v, st, err = c.getRecord(ctx, e.Key)
		if err != nil {
			return zero, Miss, err
		}
		if st == Miss {
			c.hooks.DanglingReference(refKey, e.Key)
			c.log.Debug("dangling reference", Fields{"ref": refKey, "target": e.Key})
		}
	default:
		c.heal(ctx, refKey, "unexpected_kind")
		v, st = zero, Miss
	}
	c.hooks.Lookup(c.desc.Label(), st)
	return v, st, nil
}

// getRecord reads the record entry stored at a primary object key.
func (c *cache[R]) getRecord(ctx context.Context, key string) (R, Status, error) {
	var zero R
	if !c.enabled {
		return zero, Miss, nil
	}
	e, st, err := c.load(ctx, key)
	if err != nil || st != Hit {
		return zero, st, err
	}
	if e.Kind != wire.KindRecord {
		c.heal(ctx, key, "unexpected_kind")
		return zero, Miss, nil
	}
	v, st := c.decode(ctx, key, e.Payload)
	return v, st, nil
}

// load fetches and unframes one entry. Corrupt frames are deleted and
// reported as Miss; live tombstones as Tombstoned. An expired tombstone is a
// Miss and left for the backend to evict: deleting it here could race with a
// fresh write.
func (c *cache[R]) load(ctx context.Context, key string) (wire.Entry, Status, error) {
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil || !ok {
		return wire.Entry{}, Miss, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		c.heal(ctx, key, "corrupt")
		return wire.Entry{}, Miss, nil
	}
	if e.Kind == wire.KindTombstone {
		if e.Expired(c.now()) {
			return wire.Entry{}, Miss, nil
		}
		return e, Tombstoned, nil
	}
	return e, Hit, nil
}

func (c *cache[R]) encode(r R) ([]byte, error) {
	payload, err := c.codec.Encode(r)
	if err != nil {
		return nil, err
	}
	return wire.EncodeRecord(payload), nil
}

func (c *cache[R]) decode(ctx context.Context, key string, payload []byte) (R, Status) {
	v, err := c.codec.Decode(payload)
	if err != nil {
		var zero R
		c.heal(ctx, key, "value_decode")
		return zero, Miss
	}
	return v, Hit
}

func (c *cache[R]) heal(ctx context.Context, key, reason string) {
	_ = c.provider.Del(ctx, key)
	c.hooks.CorruptEntry(key, reason)
	c.log.Debug("dropped unreadable entry", Fields{"key": key, "reason": reason})
}

func (c *cache[R]) rejected(key string, many bool) {
	c.hooks.ProviderSetRejected(key, many)
	c.log.Debug("write rejected by provider (pressure)", Fields{"key": key, "many": many})
}
