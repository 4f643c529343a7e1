// Package redisnotify fans invalidation events out to other processes over
// Redis Pub/Sub. Processes that keep records in a local provider (memory,
// ristretto, bigcache) subscribe to drop the keys changed elsewhere.
//
//	pub := redisnotify.NewPublisher(rdb, "modelcache:events")
//	lifecycle.Subscribe(redisnotify.Forward[User](pub, nil))
//
//	go pub.Listen(ctx, redisnotify.Evict(userCache, nil))
package redisnotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/modelcache"
)

var ErrNilClient = errors.New("redisnotify: nil client")

// Handler consumes events published by other processes.
type Handler func(ctx context.Context, ev modelcache.Event)

type Publisher struct {
	rdb     goredis.UniversalClient
	channel string
	origin  string
}

// NewPublisher publishes to and listens on channel. Each Publisher gets a
// random origin id so Listen can skip the events it published itself.
func NewPublisher(rdb goredis.UniversalClient, channel string) *Publisher {
	var id [8]byte
	_, _ = rand.Read(id[:])
	return &Publisher{rdb: rdb, channel: channel, origin: hex.EncodeToString(id[:])}
}

func (p *Publisher) Origin() string  { return p.origin }
func (p *Publisher) Channel() string { return p.channel }

// Publish stamps ev with this publisher's origin and sends it.
func (p *Publisher) Publish(ctx context.Context, ev modelcache.Event) error {
	if p.rdb == nil {
		return ErrNilClient
	}
	ev.Origin = p.origin
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Forward returns a lifecycle subscriber that publishes every invalidation.
// Publish errors go to onErr when it is non-nil.
func Forward[R any](p *Publisher, onErr func(error)) modelcache.Subscriber[R] {
	return func(ctx context.Context, inv modelcache.Invalidation[R]) {
		if err := p.Publish(ctx, inv.Event()); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Listen delivers events from other publishers to h until ctx is done.
// Undecodable messages are skipped.
func (p *Publisher) Listen(ctx context.Context, h Handler) error {
	if p.rdb == nil {
		return ErrNilClient
	}
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()
	// wait for the subscription to be confirmed before consuming
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			p.dispatch(ctx, []byte(msg.Payload), h)
		}
	}
}

func (p *Publisher) dispatch(ctx context.Context, payload []byte, h Handler) {
	ev, err := Decode(payload)
	if err != nil || ev.Origin == p.origin {
		return
	}
	h(ctx, ev)
}

func Encode(ev modelcache.Event) ([]byte, error) { return msgpack.Marshal(&ev) }

func Decode(b []byte) (modelcache.Event, error) {
	var ev modelcache.Event
	err := msgpack.Unmarshal(b, &ev)
	return ev, err
}

// Evict returns a Handler that drops the keys of c's type named by incoming
// events. Remote deletes are tombstoned locally; remote saves remove the key
// outright. Events for other types are ignored. Deletion errors go to onErr
// when it is non-nil.
func Evict[R any](c modelcache.Cache[R], onErr func(error)) Handler {
	label := c.Descriptor().Label()
	return func(ctx context.Context, ev modelcache.Event) {
		if ev.Type != label {
			return
		}
		var opts []modelcache.DeleteOption
		if ev.Op != modelcache.OpDelete {
			opts = append(opts, modelcache.Force())
		}
		if err := c.DeleteKey(ctx, ev.Key, opts...); err != nil && onErr != nil {
			onErr(err)
		}
	}
}
