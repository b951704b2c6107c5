package asset

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/asset-runtime/errors"
)

// Handle is a counted reference to a cached record. It never owns the
// payload. Every Handle must be released exactly once; Clone produces an
// independent handle with its own reference.
//
// A handle that becomes unreachable without Release is released by a
// runtime cleanup and reported as a leak.
type Handle struct {
	ref *handleRef
}

// handleRef is the state shared with the leak cleanup. It must never point
// back to its Handle.
type handleRef struct {
	rec      *Record
	cleanup  runtime.Cleanup
	lsn      []uint64
	mu       sync.Mutex
	behavior LoadBehavior
	released atomic.Bool
}

func newHandle(rec *Record, behavior LoadBehavior) *Handle {
	ref := &handleRef{rec: rec, behavior: behavior}
	h := &Handle{ref: ref}
	ref.cleanup = runtime.AddCleanup(h, leaked, ref)
	return h
}

func leaked(ref *handleRef) {
	if !ref.released.CompareAndSwap(false, true) {
		return
	}
	rec := ref.rec
	rec.c.log.Warn("asset handle leaked without Release",
		zap.Stringer("asset", rec.id),
		zap.String("type", rec.c.nameOf(rec.typ)))
	ref.mu.Lock()
	ids := ref.lsn
	ref.lsn = nil
	ref.mu.Unlock()
	_ = rec.c.release(rec, ids)
}

// ID returns the asset id, or the zero id for a zero handle.
func (h *Handle) ID() AssetID {
	if h == nil || h.ref == nil {
		return AssetID{}
	}
	return h.ref.rec.id
}

// Type returns the asset type tag.
func (h *Handle) Type() TypeTag {
	if h == nil || h.ref == nil {
		return TypeTag{}
	}
	return h.ref.rec.typ
}

// LoadBehavior returns the behavior the handle was created with.
func (h *Handle) LoadBehavior() LoadBehavior {
	if h == nil || h.ref == nil {
		return DefaultLoadBehavior
	}
	return h.ref.behavior
}

// IsValid reports whether the handle references a record, is not released
// and its manager is not destroyed.
func (h *Handle) IsValid() bool {
	return h.live() && !h.ref.rec.c.isClosed()
}

func (h *Handle) live() bool {
	return h != nil && h.ref != nil && !h.ref.released.Load()
}

// Status returns the record status as of the last pump.
func (h *Handle) Status() Status {
	if !h.live() {
		return StatusNotLoaded
	}
	return h.ref.rec.Status()
}

// IsReady reports whether the payload is available.
func (h *Handle) IsReady() bool {
	return h.Status() == StatusReady
}

// Get returns the payload. It never blocks; before Ready it fails with a
// not ready error and the caller should poll or register a callback.
func (h *Handle) Get() (any, error) {
	if !h.live() {
		return nil, errors.InvalidInput(errors.PhaseLookup, "get on released or zero handle")
	}
	rec := h.ref.rec
	rec.c.mu.Lock()
	closed, payload, status := rec.c.closed, rec.payload, rec.status
	rec.c.mu.Unlock()
	if closed {
		return nil, errors.Closed(errors.PhaseLookup, "asset container")
	}
	if status != StatusReady {
		return nil, errors.NotReady(rec.id.String(), status.String())
	}
	return payload, nil
}

// Err returns the load error when the record is in Error.
func (h *Handle) Err() error {
	if !h.live() {
		return nil
	}
	return h.ref.rec.Err()
}

// Record exposes the underlying record for tooling.
func (h *Handle) Record() *Record {
	if h == nil || h.ref == nil {
		return nil
	}
	return h.ref.rec
}

// Release drops the handle's reference. Releasing twice, or releasing a zero
// handle, is a no-op.
func (h *Handle) Release() {
	if h == nil || h.ref == nil {
		return
	}
	ref := h.ref
	if !ref.released.CompareAndSwap(false, true) {
		return
	}
	ref.cleanup.Stop()
	ref.mu.Lock()
	ids := ref.lsn
	ref.lsn = nil
	ref.mu.Unlock()
	_ = ref.rec.c.release(ref.rec, ids)
}

// Clone returns a new handle to the same record with its own reference.
func (h *Handle) Clone() *Handle {
	if !h.IsValid() {
		return &Handle{}
	}
	h.ref.rec.c.retain(h.ref.rec)
	return newHandle(h.ref.rec, h.ref.behavior)
}

// OnReady registers fn for Ready and Reloaded events of this record. If the
// record is already Ready, fn runs during the next pump.
func (h *Handle) OnReady(fn func(Event)) {
	h.listen(fn, func(t EventType) bool {
		return t == EventReady || t == EventReloaded
	}, StatusReady)
}

// OnError registers fn for Error and ReloadError events. If the record has
// already failed, fn runs during the next pump.
func (h *Handle) OnError(fn func(Event)) {
	h.listen(fn, func(t EventType) bool {
		return t == EventError || t == EventReloadError
	}, StatusError)
}

// OnChange registers fn for every event of this record.
func (h *Handle) OnChange(fn func(Event)) {
	h.listen(fn, func(EventType) bool { return true }, 0xff)
}

func (h *Handle) listen(fn func(Event), match func(EventType) bool, current Status) {
	if !h.IsValid() || fn == nil {
		return
	}
	ref := h.ref
	rec := ref.rec
	wrapped := func(e Event) {
		if match(e.Type) {
			fn(e)
		}
	}
	id := rec.c.addListener(rec, wrapped)
	ref.mu.Lock()
	ref.lsn = append(ref.lsn, id)
	ref.mu.Unlock()

	rec.c.mu.Lock()
	status := rec.status
	var e Event
	if status == current {
		if status == StatusReady {
			e = rec.event(EventReady)
		} else {
			e = rec.event(EventError)
		}
	}
	rec.c.mu.Unlock()

	if status == current {
		rec.c.post(queuedEvent{kind: evFunc, fn: func() {
			if !ref.released.Load() {
				fn(e)
			}
		}})
	}
}

// Wait blocks until the record reaches Ready or Error, or ctx is done. It
// does not pump; some other goroutine must call DispatchEvents. Waiting on a
// NotLoaded record with no load in flight fails immediately.
func (h *Handle) Wait(ctx context.Context) error {
	if !h.live() {
		return errors.InvalidInput(errors.PhaseLookup, "wait on released or zero handle")
	}
	rec := h.ref.rec
	for {
		changed, done, err := rec.waitState()
		if done {
			return err
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitState reports whether the record is settled and, if not, the channel
// closed on its next transition.
func (r *Record) waitState() (<-chan struct{}, bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.closed {
		return nil, true, errors.Closed(errors.PhaseRuntime, "asset container")
	}
	switch r.status {
	case StatusReady:
		return nil, true, nil
	case StatusError:
		return nil, true, r.err
	case StatusNotLoaded:
		if r.inflight == 0 {
			return nil, true, errors.NotReady(r.id.String(), r.status.String())
		}
	}
	return r.changed, false, nil
}
