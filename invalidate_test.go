package modelcache

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/unkn0wn-root/modelcache/internal/wire"
	pr "github.com/unkn0wn-root/modelcache/provider"
	"github.com/unkn0wn-root/modelcache/provider/memory"
)

func TestDeleteTombstonesThenExpires(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, nil)
	w := widget{ID: 1, Code: "W1"}
	mustStore(t, e.cache, w)

	if err := e.cache.Delete(ctx, w); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ts := decodeStored(t, e.mem, pk1)
	if ts.Kind != wire.KindTombstone || !ts.Deadline.Equal(e.clock.Now().Add(DefaultTombstoneDelay)) {
		t.Fatalf("tombstone = %+v", ts)
	}
	if !slices.Equal(e.hooks.tombstones, []string{pk1}) {
		t.Fatalf("tombstone hooks = %v", e.hooks.tombstones)
	}

	if _, st, err := e.cache.Get(ctx, 1); err != nil || st != Tombstoned || st.Found() {
		t.Fatalf("Get after delete = %v %v", st, err)
	}

	e.clock.Advance(DefaultTombstoneDelay - time.Millisecond)
	if _, st, _ := e.cache.Get(ctx, 1); st != Tombstoned {
		t.Fatalf("Get just before expiry = %v", st)
	}

	e.clock.Advance(time.Millisecond)
	if _, st, _ := e.cache.Get(ctx, 1); st != Miss {
		t.Fatalf("Get after expiry = %v", st)
	}
	if _, ok, _ := e.mem.Get(ctx, pk1); ok {
		t.Fatalf("tombstone should be gone from the backend")
	}
}

func TestStoreOverwritesTombstone(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, nil)
	w := widget{ID: 1, Code: "W1"}
	mustStore(t, e.cache, w)
	if err := e.cache.Delete(ctx, w); err != nil {
		t.Fatal(err)
	}

	w.Name = "renamed"
	mustStore(t, e.cache, w)
	got, st, _ := e.cache.Get(ctx, 1)
	if st != Hit || got != w {
		t.Fatalf("Get = %+v %v", got, st)
	}
}

func TestForceDeleteRemovesImmediately(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, nil)
	w := widget{ID: 1, Code: "W1"}
	if _, err := e.cache.StoreUnique(ctx, w); err != nil {
		t.Fatal(err)
	}

	if err := e.cache.Delete(ctx, w, Force()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := e.mem.Get(ctx, pk1); ok {
		t.Fatalf("primary key still present")
	}
	if _, ok, _ := e.mem.Get(ctx, code1); !ok {
		t.Fatalf("references are not cascaded")
	}
	if len(e.hooks.tombstones) != 0 {
		t.Fatalf("forced delete wrote a tombstone")
	}
	if _, st, _ := e.cache.Get(ctx, 1); st != Miss {
		t.Fatalf("Get = %v", st)
	}
}

func TestWithDelay(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, nil)
	mustStore(t, e.cache, widget{ID: 1})

	if err := e.cache.DeleteByPK(ctx, 1, WithDelay(time.Minute)); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(DefaultTombstoneDelay)
	if _, st, _ := e.cache.Get(ctx, 1); st != Tombstoned {
		t.Fatalf("Get after default delay = %v", st)
	}
	e.clock.Advance(time.Minute - DefaultTombstoneDelay)
	if _, st, _ := e.cache.Get(ctx, 1); st != Miss {
		t.Fatalf("Get after custom delay = %v", st)
	}
}

func TestWithDelayNonPositiveKeepsDefault(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, func(o *Options[widget]) { o.TombstoneDelay = 2 * time.Second })
	mustStore(t, e.cache, widget{ID: 1})

	if err := e.cache.DeleteByPK(ctx, 1, WithDelay(0)); err != nil {
		t.Fatal(err)
	}
	ts := decodeStored(t, e.mem, pk1)
	if want := e.clock.Now().Add(2 * time.Second); !ts.Deadline.Equal(want) {
		t.Fatalf("deadline = %v want %v", ts.Deadline, want)
	}
}

func TestRejectedTombstoneFallsBackToDelete(t *testing.T) {
	ctx := context.Background()
	var rp *rejectingProvider
	e := newTestCache(t, func(m *memory.Provider) pr.Provider {
		rp = &rejectingProvider{Provider: m}
		return rp
	}, nil)
	if _, err := e.mem.Set(ctx, pk1, wire.EncodeRecord([]byte(`{"id":1}`)), 1, 0); err != nil {
		t.Fatal(err)
	}
	if _, st, _ := e.cache.Get(ctx, 1); st != Hit {
		t.Fatalf("seeded record not readable: %v", st)
	}

	if err := e.cache.DeleteByPK(ctx, 1); err != nil {
		t.Fatalf("DeleteByPK: %v", err)
	}
	if !slices.Equal(rp.dels, []string{pk1}) {
		t.Fatalf("dels = %v", rp.dels)
	}
	if !slices.Equal(e.hooks.rejected, []string{pk1}) || len(e.hooks.tombstones) != 0 {
		t.Fatalf("rejected = %v tombstones = %v", e.hooks.rejected, e.hooks.tombstones)
	}
	if _, st, _ := e.cache.Get(ctx, 1); st != Miss {
		t.Fatalf("old value must not stay readable: %v", st)
	}
}

// Backends that ignore TTLs still stop reporting the tombstone after its
// embedded deadline. The entry itself is left for a later write.
func TestTombstoneDeadlineWithoutBackendTTL(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, func(m *memory.Provider) pr.Provider { return noTTLProvider{m} }, nil)
	mustStore(t, e.cache, widget{ID: 1})
	if err := e.cache.DeleteByPK(ctx, 1); err != nil {
		t.Fatal(err)
	}

	e.clock.Advance(time.Hour)
	if _, st, _ := e.cache.Get(ctx, 1); st != Miss {
		t.Fatalf("Get = %v", st)
	}
	if _, ok, _ := e.mem.Get(ctx, pk1); !ok {
		t.Fatalf("expired tombstone should not be deleted on read")
	}
}

func TestDeleteSet(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, nil)
	a, b := widget{ID: 1}, widget{ID: 2}
	mustStore(t, e.cache, a, b)
	vary := VaryBy{"owner": 7}
	key, err := e.cache.StoreSet(ctx, []widget{a, b}, "owned", vary)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.cache.DeleteSet(ctx, "owned", vary); err != nil {
		t.Fatalf("DeleteSet: %v", err)
	}
	if seq, st, _ := e.cache.GetSet(ctx, "owned", vary); st != Tombstoned || seq != nil {
		t.Fatalf("GetSet = %v %v", seq, st)
	}
	if _, st, _ := e.cache.Get(ctx, 1); st != Hit {
		t.Fatalf("members must not be touched: %v", st)
	}

	if err := e.cache.DeleteSet(ctx, "owned", vary, Force()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := e.mem.Get(ctx, key); ok {
		t.Fatalf("forced DeleteSet left %q", key)
	}
	if err := e.cache.DeleteSet(ctx, "", nil); !errors.Is(err, ErrEmptySetName) {
		t.Fatalf("expected ErrEmptySetName, got %v", err)
	}
}

func TestDeleteKey(t *testing.T) {
	ctx := context.Background()
	e := newTestCache(t, nil, nil)
	mustStore(t, e.cache, widget{ID: 1})

	if err := e.cache.DeleteKey(ctx, pk1); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, st, _ := e.cache.Get(ctx, 1); st != Tombstoned {
		t.Fatalf("Get = %v", st)
	}
	for _, k := range []string{"model:app.gadget[id=1]", "model:app.widget:all", "model:app.widget[id=1"} {
		if err := e.cache.DeleteKey(ctx, k); !errors.Is(err, ErrForeignKey) {
			t.Fatalf("DeleteKey(%q) = %v", k, err)
		}
	}
}
