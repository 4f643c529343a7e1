package modelcache

import (
	"context"
	"sync"
)

// Op is the persistence event behind an invalidation.
type Op uint8

const (
	OpSave Op = iota + 1
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSave:
		return "save"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Invalidation is delivered to subscribers after every persisted change.
type Invalidation[R any] struct {
	Type   Type
	Key    string // primary object key
	Op     Op
	Record R
}

// Event is the record-free part of an Invalidation, for transports that
// cross process boundaries.
type Event struct {
	Type string `msgpack:"t" json:"type"` // "<namespace>.<name>"
	Key  string `msgpack:"k" json:"key"`
	Op   Op     `msgpack:"o" json:"op"`

	// Origin identifies the publishing process; set by transports.
	Origin string `msgpack:"src,omitempty" json:"origin,omitempty"`
}

func (i Invalidation[R]) Event() Event {
	return Event{Type: i.Type.Label(), Key: i.Key, Op: i.Op}
}

// Subscriber receives invalidations synchronously on the caller's goroutine.
// Owners of named sets use it to drop or rebuild sets containing the record.
type Subscriber[R any] func(ctx context.Context, inv Invalidation[R])

type subscription[R any] struct {
	id uint64
	fn Subscriber[R]
}

// Lifecycle ties persistence events to the cache. Call Saved after a record
// is created or updated and Deleted after it is removed.
type Lifecycle[R any] struct {
	cache      Cache[R]
	deleteOpts []DeleteOption

	mu   sync.RWMutex
	subs []subscription[R]
	next uint64
}

// NewLifecycle wires c to persistence events. opts apply to every Deleted call.
func NewLifecycle[R any](c Cache[R], opts ...DeleteOption) *Lifecycle[R] {
	return &Lifecycle[R]{cache: c, deleteOpts: opts}
}

// Subscribe registers fn and returns a function that removes it. A nil fn is
// not registered and gets a no-op cancel.
func (l *Lifecycle[R]) Subscribe(fn Subscriber[R]) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	l.mu.Lock()
	l.next++
	id := l.next
	l.subs = append(l.subs, subscription[R]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, s := range l.subs {
				if s.id == id {
					l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Saved stores r with all its unique references so the next read is warm,
// then notifies subscribers. Subscribers are notified even when the cache
// write fails; that error is returned.
func (l *Lifecycle[R]) Saved(ctx context.Context, r R) error {
	key, err := l.cache.Key(r)
	if err != nil {
		return err
	}
	_, err = l.cache.StoreUnique(ctx, r)
	l.notify(ctx, Invalidation[R]{Type: l.cache.Descriptor().Type, Key: key, Op: OpSave, Record: r})
	return err
}

// Deleted invalidates r, then notifies subscribers. Subscribers are notified
// even when the cache delete fails; that error is returned.
func (l *Lifecycle[R]) Deleted(ctx context.Context, r R) error {
	key, err := l.cache.Key(r)
	if err != nil {
		return err
	}
	err = l.cache.Delete(ctx, r, l.deleteOpts...)
	l.notify(ctx, Invalidation[R]{Type: l.cache.Descriptor().Type, Key: key, Op: OpDelete, Record: r})
	return err
}

func (l *Lifecycle[R]) notify(ctx context.Context, inv Invalidation[R]) {
	l.mu.RLock()
	subs := make([]Subscriber[R], len(l.subs))
	for i, s := range l.subs {
		subs[i] = s.fn
	}
	l.mu.RUnlock()

	for _, fn := range subs {
		fn(ctx, inv)
	}
}
