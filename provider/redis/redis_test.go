package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/modelcache/provider"
)

func TestNewRejectsNilClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestExpiryClampsNonPositive(t *testing.T) {
	if expiry(-time.Second) != 0 || expiry(0) != 0 {
		t.Fatalf("non-positive TTL must map to no expiry")
	}
	if expiry(5*time.Second) != 5*time.Second {
		t.Fatalf("positive TTL must pass through")
	}
}

func TestClusterClientWritesSequentially(t *testing.T) {
	cc := goredis.NewClusterClient(&goredis.ClusterOptions{Addrs: []string{"127.0.0.1:1"}})
	defer cc.Close()
	p, err := New(Config{Client: cc})
	if err != nil {
		t.Fatal(err)
	}
	if !p.cluster {
		t.Fatalf("cluster client not detected")
	}
	if ok, err := p.SetMany(context.Background(), nil, 0); err != nil || !ok {
		t.Fatalf("empty SetMany: ok=%v err=%v", ok, err)
	}

	single, err := New(Config{Client: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	defer single.Close(context.Background())
	if single.cluster {
		t.Fatalf("single-node client treated as cluster")
	}
}

// Runs against a live server only when MODELCACHE_REDIS_ADDR is set.
func TestLiveRoundTrip(t *testing.T) {
	addr := os.Getenv("MODELCACHE_REDIS_ADDR")
	if addr == "" {
		t.Skip("MODELCACHE_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	p, err := New(Config{Client: rdb, CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	ok, err := p.SetMany(ctx, []pr.Item{
		{Key: "model:test.rt[a=1]", Value: []byte("x")},
		{Key: "model:test.rt[b=1]", Value: []byte("y")},
	}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetMany: ok=%v err=%v", ok, err)
	}
	if b, ok, err := p.Get(ctx, "model:test.rt[b=1]"); err != nil || !ok || string(b) != "y" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if ok, err := p.Add(ctx, "model:test.rt[b=1]", []byte("z"), 1, time.Minute); err != nil || ok {
		t.Fatalf("Add over a live key: ok=%v err=%v", ok, err)
	}
	if b, _, _ := p.Get(ctx, "model:test.rt[b=1]"); string(b) != "y" {
		t.Fatalf("Add replaced the value: %q", b)
	}
	_ = p.Del(ctx, "model:test.rt[a=1]")
	_ = p.Del(ctx, "model:test.rt[b=1]")
	if ok, err := p.Add(ctx, "model:test.rt[b=1]", []byte("z"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("Add to a free key: ok=%v err=%v", ok, err)
	}
	_ = p.Del(ctx, "model:test.rt[b=1]")
	if _, ok, _ := p.Get(ctx, "model:test.rt[a=1]"); ok {
		t.Fatalf("expected miss after Del")
	}
}
