package modelcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/modelcache/internal/wire"
)

// DeleteOption configures Delete, DeleteByPK and DeleteSet.
type DeleteOption func(*deleteOptions)

type deleteOptions struct {
	force bool
	delay time.Duration
}

// Force removes the key immediately instead of tombstoning it. Only safe when
// no reader can be populating the key from a stale datastore read.
func Force() DeleteOption {
	return func(o *deleteOptions) { o.force = true }
}

// WithDelay overrides the tombstone lifetime. Non-positive values keep the
// cache default.
func WithDelay(d time.Duration) DeleteOption {
	return func(o *deleteOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// Delete invalidates the record's primary key. Reference entries are left in
// place; they resolve to Tombstoned and later to Miss.
func (c *cache[R]) Delete(ctx context.Context, r R, opts ...DeleteOption) error {
	key, err := c.Key(r)
	if err != nil {
		return err
	}
	return c.invalidate(ctx, key, opts)
}

// DeleteByPK is Delete for callers that only know the primary key, such as
// listeners of remote invalidation events.
func (c *cache[R]) DeleteByPK(ctx context.Context, pk any, opts ...DeleteOption) error {
	return c.invalidate(ctx, ObjectKey(c.desc.Type, VaryBy{c.desc.Primary: pk}), opts)
}

// DeleteKey invalidates a primary object key of this type as carried by
// Event.Key. Keys of other types fail with ErrForeignKey.
func (c *cache[R]) DeleteKey(ctx context.Context, key string, opts ...DeleteOption) error {
	if !strings.HasPrefix(key, c.objectPrefix) || !strings.HasSuffix(key, "]") {
		return fmt.Errorf("%w: %q", ErrForeignKey, key)
	}
	return c.invalidate(ctx, key, opts)
}

// DeleteSet invalidates a named set. Member records are not touched.
func (c *cache[R]) DeleteSet(ctx context.Context, name string, vary VaryBy, opts ...DeleteOption) error {
	if name == "" {
		return ErrEmptySetName
	}
	return c.invalidate(ctx, NamedKey(c.desc.Type, name, vary), opts)
}

func (c *cache[R]) invalidate(ctx context.Context, key string, opts []DeleteOption) error {
	if !c.enabled {
		return nil
	}
	o := deleteOptions{delay: c.tombstoneDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if o.force {
		return c.provider.Del(ctx, key)
	}

	raw := wire.EncodeTombstone(c.now().Add(o.delay))
	ok, err := c.provider.Set(ctx, key, raw, c.computeSetCost(key, raw, false, 0), o.delay)
	if err != nil {
		return err
	}
	if !ok {
		// a rejected tombstone would leave the old value readable
		c.rejected(key, false)
		return c.provider.Del(ctx, key)
	}
	c.hooks.Tombstoned(key, o.delay)
	c.log.Debug("tombstoned key", Fields{"key": key, "delay": o.delay})
	return nil
}
