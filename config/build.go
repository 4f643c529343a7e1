package config

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/modelcache"
	"github.com/unkn0wn-root/modelcache/codec"
	redisnotify "github.com/unkn0wn-root/modelcache/notify/redis"
	pr "github.com/unkn0wn-root/modelcache/provider"
	"github.com/unkn0wn-root/modelcache/provider/bigcache"
	"github.com/unkn0wn-root/modelcache/provider/memory"
	rp "github.com/unkn0wn-root/modelcache/provider/redis"
	"github.com/unkn0wn-root/modelcache/provider/ristretto"
)

// RedisClient returns a client for the provider.redis settings.
func (c Config) RedisClient() *goredis.Client {
	r := c.Provider.Redis
	return goredis.NewClient(&goredis.Options{
		Addr:     r.Addr,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
	})
}

// NewProvider builds the configured backend. A redis provider owns the client
// it creates and closes it on Close.
func (c Config) NewProvider() (pr.Provider, error) {
	switch c.Provider.Kind {
	case KindMemory, "":
		return memory.New(memory.Config{}), nil
	case KindRedis:
		return rp.New(rp.Config{Client: c.RedisClient(), CloseClient: true})
	case KindRistretto:
		r := c.Provider.Ristretto
		return ristretto.New(ristretto.Config{
			NumCounters: r.NumCounters,
			MaxCost:     r.MaxCost,
			BufferItems: r.BufferItems,
			Metrics:     r.Metrics,
		})
	case KindBigCache:
		b := c.Provider.BigCache
		return bigcache.New(bigcache.Config{
			LifeWindow:         b.LifeWindow.Std(),
			CleanWindow:        b.CleanWindow.Std(),
			MaxEntriesInWindow: b.MaxEntriesInWindow,
			MaxEntrySize:       b.MaxEntrySize,
			HardMaxCacheSizeMB: b.HardMaxCacheSizeMB,
		})
	default:
		return nil, fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
}

// NewPublisher returns the invalidation publisher, or nil when notify is not
// configured.
func (c Config) NewPublisher() *redisnotify.Publisher {
	if c.Notify.Channel == "" {
		return nil
	}
	return redisnotify.NewPublisher(c.RedisClient(), c.Notify.Channel)
}

// CacheOptions assembles Options for the registered type label. Logger and
// Hooks are left for the caller.
func CacheOptions[R any](c Config, reg *modelcache.Registry, label string, p pr.Provider) (modelcache.Options[R], error) {
	d, ok := reg.Lookup(label)
	if !ok {
		return modelcache.Options[R]{}, fmt.Errorf("type %q is not configured", label)
	}
	cd, err := codec.ByName[R](c.Codec)
	if err != nil {
		return modelcache.Options[R]{}, err
	}
	if c.MaxValueSize > 0 {
		cd = codec.Limit[R]{Inner: cd, Max: c.MaxValueSize}
	}
	return modelcache.Options[R]{
		Descriptor:     d,
		Provider:       p,
		Codec:          cd,
		DefaultTTL:     c.DefaultTTL.Std(),
		TombstoneDelay: c.TombstoneDelay.Std(),
		Disabled:       c.Disabled,
	}, nil
}
