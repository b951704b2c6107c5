package asset

import (
	"testing"

	"github.com/wippyai/asset-runtime/errors"
)

func TestContainer_FindOrCreateTypeRoundTrip(t *testing.T) {
	c := NewContainer(nil)
	id := NewAssetID(0)
	meshType := NewTypeTag("MeshAsset")
	texType := NewTypeTag("TextureAsset")

	r1, err := c.FindOrCreate(id, meshType)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if r1.Status() != StatusNotLoaded || r1.RefCount() != 0 {
		t.Fatalf("new record status=%v refs=%d", r1.Status(), r1.RefCount())
	}

	r2, err := c.FindOrCreate(id, meshType)
	if err != nil {
		t.Fatalf("second FindOrCreate: %v", err)
	}
	if r1 != r2 {
		t.Fatal("same id and type should return the identical record")
	}

	_, err = c.FindOrCreate(id, texType)
	if !errors.Is(err, errors.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestContainer_NullID(t *testing.T) {
	c := NewContainer(nil)
	_, err := c.FindOrCreate(AssetID{}, NewTypeTag("MeshAsset"))
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestContainer_UnreferencedRecordSweptByPump(t *testing.T) {
	c := NewContainer(nil)
	id := NewAssetID(0)
	if _, err := c.FindOrCreate(id, NewTypeTag("MeshAsset")); err != nil {
		t.Fatal(err)
	}
	c.DispatchEvents()
	if c.Len() != 0 {
		t.Fatalf("unreferenced record should be swept, Len = %d", c.Len())
	}
}

func TestContainer_ReleaseNotLoadedEvictsImmediately(t *testing.T) {
	c := NewContainer(nil)
	id := NewAssetID(0)
	rec, err := c.acquire(id, NewTypeTag("MeshAsset"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Release(rec); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := c.Find(id); ok {
		t.Fatal("NotLoaded record should be evicted on last release")
	}
	if err := c.Release(rec); err == nil {
		t.Fatal("releasing an unreferenced record should fail")
	}
}

func TestContainer_ReadyEvictionDeferred(t *testing.T) {
	c := NewContainer(nil)
	id := NewAssetID(0)
	typ := NewTypeTag("MeshAsset")
	rec, _ := c.acquire(id, typ)

	c.mu.Lock()
	rec.generation = 1
	rec.inflight = 1
	c.mu.Unlock()
	c.post(queuedEvent{kind: evCompleted, id: id, typ: typ, gen: 1, payload: &testMesh{Name: "m"}})
	c.DispatchEvents()
	if rec.Status() != StatusReady {
		t.Fatalf("status = %v, want Ready", rec.Status())
	}

	_ = c.Release(rec)
	if _, ok := c.Find(id); !ok {
		t.Fatal("Ready record must survive until the next pump")
	}

	// reacquire before the pump keeps it
	again, _ := c.acquire(id, typ)
	if again != rec {
		t.Fatal("reacquire should return the cached record")
	}
	c.DispatchEvents()
	if _, ok := c.Find(id); !ok {
		t.Fatal("reacquired record must not be evicted")
	}

	_ = c.Release(again)
	c.DispatchEvents()
	if _, ok := c.Find(id); ok {
		t.Fatal("unreferenced Ready record should be evicted by the pump")
	}
	if _, ok := rec.Payload(); ok || rec.Status() != StatusNotLoaded {
		t.Fatalf("evicted record status = %v, want NotLoaded without payload", rec.Status())
	}
}

func TestContainer_SuspendRelease(t *testing.T) {
	c := NewContainer(nil)
	id := NewAssetID(0)
	rec, _ := c.acquire(id, NewTypeTag("MeshAsset"))

	c.SuspendRelease()
	c.SuspendRelease()
	_ = c.Release(rec)
	c.DispatchEvents()
	if c.Len() != 1 {
		t.Fatal("no eviction while suspended")
	}
	c.ResumeRelease()
	if c.Len() != 1 {
		t.Fatal("still suspended once")
	}
	c.ResumeRelease()
	if c.Len() != 0 {
		t.Fatalf("resume should evict unreferenced records, Len = %d", c.Len())
	}
	c.ResumeRelease()
}

func TestContainer_StaleCompletionDropped(t *testing.T) {
	c := NewContainer(nil)
	id := NewAssetID(0)
	typ := NewTypeTag("MeshAsset")
	rec, _ := c.acquire(id, typ)

	c.mu.Lock()
	rec.generation = 2
	rec.inflight = 2
	c.mu.Unlock()

	var drops [2]int
	stale := &dropCounter{n: &drops[0]}
	fresh := &dropCounter{n: &drops[1]}
	c.post(queuedEvent{kind: evCompleted, id: id, typ: typ, gen: 2, payload: fresh})
	c.post(queuedEvent{kind: evCompleted, id: id, typ: typ, gen: 1, payload: stale})
	c.DispatchEvents()

	p, ok := rec.Payload()
	if !ok || p != fresh {
		t.Fatalf("payload = %v, want fresh", p)
	}
	if drops[0] != 1 || drops[1] != 0 {
		t.Fatalf("drops = %v, want stale dropped only", drops)
	}
	c.mu.Lock()
	inflight := rec.inflight
	c.mu.Unlock()
	if inflight != 0 {
		t.Fatalf("inflight = %d, want 0", inflight)
	}
}

type dropCounter struct{ n *int }

func (d *dropCounter) Drop() { *d.n++ }

type recordingObserver struct {
	events []EventType
}

func (o *recordingObserver) OnAssetEvent(e Event) { o.events = append(o.events, e.Type) }

func TestContainer_Observers(t *testing.T) {
	c := NewContainer(nil)
	o := &recordingObserver{}
	c.Subscribe(o)

	id := NewAssetID(0)
	rec, _ := c.acquire(id, NewTypeTag("MeshAsset"))
	_ = c.Release(rec)
	c.DispatchEvents()
	if len(o.events) != 1 || o.events[0] != EventUnloaded {
		t.Fatalf("events = %v, want [unloaded]", o.events)
	}

	c.Unsubscribe(o)
	rec, _ = c.acquire(id, NewTypeTag("MeshAsset"))
	_ = c.Release(rec)
	c.DispatchEvents()
	if len(o.events) != 1 {
		t.Fatalf("unsubscribed observer received %v", o.events)
	}
}

func TestContainer_EventsPostedDuringPumpRunNextPump(t *testing.T) {
	c := NewContainer(nil)
	var ran []string
	c.post(queuedEvent{kind: evFunc, fn: func() {
		ran = append(ran, "first")
		c.post(queuedEvent{kind: evFunc, fn: func() { ran = append(ran, "second") }})
	}})
	if n := c.DispatchEvents(); n != 1 {
		t.Fatalf("applied %d, want 1", n)
	}
	if len(ran) != 1 {
		t.Fatalf("ran = %v", ran)
	}
	c.DispatchEvents()
	if len(ran) != 2 || ran[1] != "second" {
		t.Fatalf("ran = %v", ran)
	}
}
