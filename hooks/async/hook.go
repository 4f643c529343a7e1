// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := modelcache.New[User](modelcache.Options[User]{
//	    Descriptor: userDesc,
//	    Provider:   provider,
//	    Codec:      codec.JSON[User]{},
//	    Hooks:      hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/modelcache"
)

// Hooks forwards events to inner on worker goroutines. Events that don't fit
// in the queue are dropped and counted.
type Hooks struct {
	inner modelcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ modelcache.Hooks = (*Hooks)(nil)

func New(inner modelcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events discarded so far.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Lookup(t string, s modelcache.Status) { h.try(func() { h.inner.Lookup(t, s) }) }
func (h *Hooks) CorruptEntry(k, r string)             { h.try(func() { h.inner.CorruptEntry(k, r) }) }
func (h *Hooks) DanglingReference(ref, target string) {
	h.try(func() { h.inner.DanglingReference(ref, target) })
}
func (h *Hooks) SetResolutionFailed(set, member string) {
	h.try(func() { h.inner.SetResolutionFailed(set, member) })
}
func (h *Hooks) ProviderSetRejected(k string, many bool) {
	h.try(func() { h.inner.ProviderSetRejected(k, many) })
}
func (h *Hooks) Tombstoned(k string, d time.Duration) {
	h.try(func() { h.inner.Tombstoned(k, d) })
}
