package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/modelcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Redis stores entries as plain string values. On a single node SetMany runs
// inside MULTI/EXEC, so other clients observe all items of one call or none.
//
// A record and its references hash to different cluster slots, and MULTI/EXEC
// across slots fails with CROSSSLOT. With a *ClusterClient SetMany therefore
// writes the items one by one in order; a reference may be missing briefly,
// but is never visible before the record it points to.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	cluster     bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	_, cluster := cfg.Client.(*goredis.ClusterClient)
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, cluster: cluster}, nil
}

// Client exposes the underlying client, e.g. to share it with a notifier.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, expiry(ttl)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Add(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	return p.rdb.SetNX(ctx, key, value, expiry(ttl)).Result()
}

func (p *Redis) SetMany(ctx context.Context, items []pr.Item, ttl time.Duration) (bool, error) {
	if len(items) == 0 {
		return true, nil
	}
	exp := expiry(ttl)
	if p.cluster {
		for _, it := range items {
			if err := p.rdb.Set(ctx, it.Key, it.Value, exp).Err(); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, it := range items {
			pipe.Set(ctx, it.Key, it.Value, exp)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// non-positive TTLs mean "no expiry" per provider contract
func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
