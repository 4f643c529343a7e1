package modelcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/modelcache/codec"
	pr "github.com/unkn0wn-root/modelcache/provider"
	"github.com/unkn0wn-root/modelcache/provider/memory"
)

type widget struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

var widgetDesc = Descriptor{
	Type:    Type{Namespace: "app", Name: "Widget"},
	Primary: "id",
	Unique:  []string{"code"},
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingProvider counts backend reads.
type countingProvider struct {
	pr.Provider
	gets atomic.Int64
}

func (p *countingProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p.gets.Add(1)
	return p.Provider.Get(ctx, key)
}

// rejectingProvider refuses every write the way a cache under pressure does.
type rejectingProvider struct {
	*memory.Provider
	dels []string
}

func (p *rejectingProvider) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, nil
}

func (p *rejectingProvider) SetMany(context.Context, []pr.Item, time.Duration) (bool, error) {
	return false, nil
}

func (p *rejectingProvider) Add(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, nil
}

func (p *rejectingProvider) Del(ctx context.Context, key string) error {
	p.dels = append(p.dels, key)
	return p.Provider.Del(ctx, key)
}

// noTTLProvider ignores TTLs, like BigCache.
type noTTLProvider struct {
	*memory.Provider
}

func (p noTTLProvider) Set(ctx context.Context, key string, value []byte, cost int64, _ time.Duration) (bool, error) {
	return p.Provider.Set(ctx, key, value, cost, 0)
}

func (p noTTLProvider) Add(ctx context.Context, key string, value []byte, cost int64, _ time.Duration) (bool, error) {
	return p.Provider.Add(ctx, key, value, cost, 0)
}

var errBackend = errors.New("backend down")

// downProvider fails every call.
type downProvider struct{}

func (downProvider) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBackend }
func (downProvider) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, errBackend
}
func (downProvider) SetMany(context.Context, []pr.Item, time.Duration) (bool, error) {
	return false, errBackend
}
func (downProvider) Add(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, errBackend
}
func (downProvider) Del(context.Context, string) error { return errBackend }
func (downProvider) Close(context.Context) error       { return nil }

// recordingHooks captures hook calls.
type recordingHooks struct {
	NopHooks
	mu         sync.Mutex
	lookups    []Status
	dangling   []string
	setFails   []string
	corrupt    []string
	rejected   []string
	tombstones []string
}

func (h *recordingHooks) Lookup(_ string, st Status) {
	h.mu.Lock()
	h.lookups = append(h.lookups, st)
	h.mu.Unlock()
}

func (h *recordingHooks) DanglingReference(ref, _ string) {
	h.mu.Lock()
	h.dangling = append(h.dangling, ref)
	h.mu.Unlock()
}

func (h *recordingHooks) SetResolutionFailed(_, member string) {
	h.mu.Lock()
	h.setFails = append(h.setFails, member)
	h.mu.Unlock()
}

func (h *recordingHooks) CorruptEntry(key, reason string) {
	h.mu.Lock()
	h.corrupt = append(h.corrupt, key+"|"+reason)
	h.mu.Unlock()
}

func (h *recordingHooks) ProviderSetRejected(key string, _ bool) {
	h.mu.Lock()
	h.rejected = append(h.rejected, key)
	h.mu.Unlock()
}

func (h *recordingHooks) Tombstoned(key string, _ time.Duration) {
	h.mu.Lock()
	h.tombstones = append(h.tombstones, key)
	h.mu.Unlock()
}

type env struct {
	cache Cache[widget]
	impl  *cache[widget]
	mem   *memory.Provider
	clock *fakeClock
	hooks *recordingHooks
}

// newTestCache builds a widget cache over a memory provider sharing one fake
// clock. wrap may replace the provider seen by the cache.
func newTestCache(t *testing.T, wrap func(*memory.Provider) pr.Provider, optsOpt func(*Options[widget])) env {
	t.Helper()
	clk := newFakeClock()
	mem := memory.New(memory.Config{Now: clk.Now})
	var p pr.Provider = mem
	if wrap != nil {
		p = wrap(mem)
	}
	hooks := &recordingHooks{}
	opts := Options[widget]{
		Descriptor: widgetDesc,
		Provider:   p,
		Codec:      c.JSON[widget]{},
		Hooks:      hooks,
		Now:        clk.Now,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New[widget](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return env{cache: cc, impl: mustImpl(t, cc), mem: mem, clock: clk, hooks: hooks}
}

func mustImpl[R any](t *testing.T, cc Cache[R]) *cache[R] {
	t.Helper()
	impl, ok := cc.(*cache[R])
	if !ok {
		t.Fatalf("unexpected concrete type for Cache")
	}
	return impl
}

func mustStore(t *testing.T, cc Cache[widget], ws ...widget) {
	t.Helper()
	for _, w := range ws {
		if _, err := cc.Store(context.Background(), w); err != nil {
			t.Fatalf("Store(%d): %v", w.ID, err)
		}
	}
}
