package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/modelcache/provider"
)

// Provider wraps a ristretto cache. Ristretto buffers writes; Set and SetMany
// wait for the buffer to drain so a following Get observes the write.
// SetMany is not atomic: items become visible one by one.
// Writes are serialized by mu so Add can check and set without a
// concurrent Del slipping in between.
type Provider struct {
	mu sync.Mutex
	c  *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost in Ristretto is provided by the caller (modelcache passes cost per Set).
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok := p.set(key, value, cost, ttl)
	p.c.Wait()
	return ok, nil
}

func (p *Provider) SetMany(_ context.Context, items []pr.Item, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := true
	for _, it := range items {
		if !p.set(it.Key, it.Value, it.Cost, ttl) {
			all = false
		}
	}
	p.c.Wait()
	return all, nil
}

// Add reports false when the key is present or ristretto's admission
// policy drops the write.
func (p *Provider) Add(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.c.Get(key); ok {
		return false, nil
	}
	ok := p.set(key, value, cost, ttl)
	p.c.Wait()
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.c.Del(key)
	p.c.Wait()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto metrics (nil unless Config.Metrics).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

func (p *Provider) set(key string, value []byte, cost int64, ttl time.Duration) bool {
	if cost <= 0 {
		cost = 1
	}
	if ttl < 0 {
		ttl = 0
	}
	return p.c.SetWithTTL(key, value, cost, ttl)
}
