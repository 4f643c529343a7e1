package bigcache

import (
	"context"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/modelcache/provider"
)

func TestRoundTripAndMissingDelete(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{LifeWindow: time.Minute, CleanWindow: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, err := p.Get(ctx, "nope"); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	if err := p.Del(ctx, "nope"); err != nil {
		t.Fatalf("Del of missing key should not error: %v", err)
	}

	ok, err := p.SetMany(ctx, []pr.Item{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}, time.Second)
	if err != nil || !ok {
		t.Fatalf("SetMany: ok=%v err=%v", ok, err)
	}
	if b, ok, err := p.Get(ctx, "b"); err != nil || !ok || string(b) != "2" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
}

func TestAddSkipsPresentKey(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{LifeWindow: time.Minute, CleanWindow: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if ok, err := p.Add(ctx, "k", []byte("1"), 1, 0); err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Add(ctx, "k", []byte("2"), 1, 0); err != nil || ok {
		t.Fatalf("Add over present key: ok=%v err=%v", ok, err)
	}
	if b, _, _ := p.Get(ctx, "k"); string(b) != "1" {
		t.Fatalf("Get = %q want 1", b)
	}
}
