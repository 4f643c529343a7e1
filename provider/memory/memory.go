// Package memory is an in-process provider with per-key expiry.
// SetMany is applied under one lock, so readers observe all items or none.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/modelcache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Provider struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	// Now overrides the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

func New(cfg Config) *Provider {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{m: make(map[string]entry), now: now}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if p.expired(e) {
		p.mu.Lock()
		// re-check; a concurrent Set may have replaced it
		if cur, ok := p.m[key]; ok && p.expired(cur) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := p.entry(value, ttl)
	p.mu.Lock()
	p.m[key] = e
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Add(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.m[key]; ok && !p.expired(cur) {
		return false, nil
	}
	p.m[key] = p.entry(value, ttl)
	return true, nil
}

func (p *Provider) SetMany(_ context.Context, items []pr.Item, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	for _, it := range items {
		p.m[it.Key] = p.entry(it.Value, ttl)
	}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Provider) Close(_ context.Context) error { return nil }

// Len returns the number of live (unexpired) entries.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.m {
		if !p.expired(e) {
			n++
		}
	}
	return n
}

// Keys returns the live keys in no particular order.
func (p *Provider) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.m))
	for k, e := range p.m {
		if !p.expired(e) {
			out = append(out, k)
		}
	}
	return out
}

func (p *Provider) entry(value []byte, ttl time.Duration) entry {
	// copy so callers can reuse their buffers
	v := append([]byte(nil), value...)
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	return entry{v: v, exp: exp}
}

func (p *Provider) expired(e entry) bool {
	return !e.exp.IsZero() && !p.now().Before(e.exp)
}
