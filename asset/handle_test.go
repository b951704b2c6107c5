package asset

import (
	"context"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/asset-runtime/errors"
)

func TestHandle_ZeroValue(t *testing.T) {
	var h Handle
	h.Release()
	if h.IsValid() || h.IsReady() {
		t.Fatal("zero handle should be invalid")
	}
	if h.ID().IsValid() {
		t.Fatal("zero handle id should be null")
	}
	if _, err := h.Get(); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("Get on zero handle: %v", err)
	}
	var nilHandle *Handle
	nilHandle.Release()
	if c := nilHandle.Clone(); c.IsValid() {
		t.Fatal("clone of nil handle should be invalid")
	}
}

func TestHandle_CallbacksRunOnlyInPump(t *testing.T) {
	env := newTestEnv(t, nil)
	id := NewAssetID(0)
	env.src.put(id, "m")

	h, _ := env.m.GetAsset(id, env.mesh, QueueLoad)
	defer h.Release()

	var ready, changes int
	h.OnReady(func(e Event) { ready++ })
	h.OnChange(func(e Event) { changes++ })

	env.sched.RunAll()
	if ready != 0 {
		t.Fatal("callback ran outside the pump")
	}
	env.m.DispatchEvents()
	if ready != 1 || changes != 1 {
		t.Fatalf("ready=%d changes=%d, want 1 and 1", ready, changes)
	}

	late := 0
	h.OnReady(func(e Event) {
		late++
		if e.Type != EventReady || e.ID != id {
			t.Errorf("late event = %+v", e)
		}
	})
	if late != 0 {
		t.Fatal("late callback must wait for the pump")
	}
	env.m.DispatchEvents()
	if late != 1 {
		t.Fatalf("late = %d, want 1", late)
	}
}

func TestHandle_OnErrorAndReleasedListener(t *testing.T) {
	env := newTestEnv(t, nil)
	id := NewAssetID(0)
	env.src.put(id, "m")
	env.handler.fail[id] = errors.InvalidInput(errors.PhaseLoad, "bad")

	h, _ := env.m.GetAsset(id, env.mesh, QueueLoad)
	other := h.Clone()
	defer other.Release()

	var fromH, fromOther int
	h.OnError(func(Event) { fromH++ })
	other.OnError(func(Event) { fromOther++ })
	h.Release()

	env.settle()
	if fromH != 0 {
		t.Fatal("released handle's callback should not run")
	}
	if fromOther != 1 {
		t.Fatalf("fromOther = %d, want 1", fromOther)
	}
}

func TestHandle_WaitWithoutPumping(t *testing.T) {
	env := newTestEnv(t, nil)
	id := NewAssetID(0)
	env.src.put(id, "m")
	h, _ := env.m.GetAsset(id, env.mesh, QueueLoad)
	defer h.Release()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- h.Wait(ctx)
	}()

	env.sched.RunAll()
	select {
	case err := <-done:
		t.Fatalf("Wait returned before the pump: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	env.m.DispatchEvents()
	if err := <-done; err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestHandle_WaitCancelled(t *testing.T) {
	env := newTestEnv(t, nil)
	id := NewAssetID(0)
	env.src.put(id, "m")
	h, _ := env.m.GetAsset(id, env.mesh, QueueLoad)
	defer h.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
}

func TestTyped_GetAndFind(t *testing.T) {
	env := newTestEnv(t, nil)
	id := NewAssetID(0)
	env.src.put(id, "typed")

	a, err := Get[*testMesh](env.m, id, QueueLoad)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer a.Release()
	if _, err := a.Get(); !errors.Is(err, errors.ErrNotReady) {
		t.Fatalf("typed Get before ready: %v", err)
	}
	env.settle()
	m, err := a.Get()
	if err != nil || m.Name != "typed" {
		t.Fatalf("typed Get = %v, %v", m, err)
	}

	found, ok := Find[*testMesh](env.m, id, NoLoad)
	if !ok {
		t.Fatal("Find should return the record")
	}
	defer found.Release()
	if found.Record() != a.Record() {
		t.Fatal("Find should reference the same record")
	}

	if _, ok := Find[*testMesh](env.m, NewAssetID(5), NoLoad); ok {
		t.Fatal("Find must not create records")
	}
	if _, err := CreateAs[string](env.m, id, NoLoad); !errors.Is(err, errors.ErrUnknownType) {
		t.Fatalf("CreateAs with unregistered go type: %v", err)
	}

	created, err := CreateAs[*testMesh](env.m, id, NoLoad)
	if err != nil {
		t.Fatalf("CreateAs: %v", err)
	}
	defer created.Release()
	if created.Record() != a.Record() || created.LoadBehavior() != NoLoad {
		t.Fatal("CreateAs should reference the existing record with its own behavior")
	}
}

func TestTyped_EditPublishesCopy(t *testing.T) {
	env := newTestEnv(t, nil)
	id, child := NewAssetID(0), NewAssetID(1)
	env.src.put(id, "original")
	env.handler.deps[id] = []Reference{{ID: child, Type: env.mesh, Behavior: NoLoad}}

	a, _ := Get[*testMesh](env.m, id, QueueLoad)
	defer a.Release()
	env.settle()
	before, _ := a.Get()

	err := Edit(env.m, a, func(m *testMesh) error {
		m.Name = "edited"
		return nil
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if before.Name != "original" {
		t.Fatal("Edit mutated the shared payload")
	}
	if got, _ := a.Get(); got != before {
		t.Fatal("published edit must not be visible before the pump")
	}

	env.m.DispatchEvents()
	after, err := a.Get()
	if err != nil {
		t.Fatal(err)
	}
	if after == before || after.Name != "edited" {
		t.Fatalf("after = %+v", after)
	}
	if env.handler.drops.Load() != 0 {
		t.Fatal("published edit must not drop the replaced payload")
	}
	if after.Refs[0].Handle() != before.Refs[0].Handle() || after.Refs[0].Handle() == nil {
		t.Fatal("edited copy should keep resolved references")
	}
	childRec, _ := env.m.Container().Find(child)
	if childRec.RefCount() != 1 {
		t.Fatalf("child refs = %d, want 1", childRec.RefCount())
	}
}

func TestTyped_EditPropagatesError(t *testing.T) {
	env := newTestEnv(t, nil)
	id := NewAssetID(0)
	env.src.put(id, "x")
	a, _ := Get[*testMesh](env.m, id, QueueLoad)
	defer a.Release()
	env.settle()

	want := errors.InvalidInput(errors.PhaseDispatch, "rejected")
	if err := Edit(env.m, a, func(*testMesh) error { return want }); err != want {
		t.Fatalf("Edit = %v, want %v", err, want)
	}
	if env.m.Container().Pending() != 0 {
		t.Fatal("rejected edit must not publish")
	}
}

func TestHandle_LeakedHandleReleased(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := newTestEnv(t, zap.New(core))
	id := NewAssetID(0)

	func() {
		h, err := env.m.CreateAsset(id, env.mesh, NoLoad)
		if err != nil {
			t.Fatal(err)
		}
		_ = h.ID()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if _, ok := env.m.Container().Find(id); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := env.m.Container().Find(id); ok {
		t.Fatal("leaked handle was not released by the cleanup")
	}
	if logs.FilterMessage("asset handle leaked without Release").Len() != 1 {
		t.Fatal("leak should be logged")
	}
}
