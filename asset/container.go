package asset

import (
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/asset-runtime/errors"
)

// Container maps AssetID to Record and owns every record and payload.
//
// Eviction policy: a record whose reference count drops to zero while
// NotLoaded or Error, with no load in flight, is evicted immediately. Any
// other unreferenced record becomes a candidate and is evicted by the first
// DispatchEvents call that begins after it became unreferenced, provided it
// is still unreferenced and nothing is in flight for it then. While release
// is suspended nothing is evicted.
type Container struct {
	records    map[AssetID]*Record
	candidates map[AssetID]*Record
	nameOf     func(TypeTag) string
	log        *zap.Logger
	signal     chan struct{}
	queue      []queuedEvent
	batch      []queuedEvent
	observers  []Observer

	mu          sync.Mutex
	qmu         sync.Mutex
	obsMu       sync.RWMutex
	pumpMu      sync.Mutex
	dispatching atomic.Bool
	suspend     int
	nextLsn     uint64
	closed      bool
}

// NewContainer creates an empty container.
func NewContainer(log *zap.Logger) *Container {
	if log == nil {
		log = Logger()
	}
	return &Container{
		records:    make(map[AssetID]*Record),
		candidates: make(map[AssetID]*Record),
		signal:     make(chan struct{}, 1),
		log:        log,
		nameOf:     func(t TypeTag) string { return t.String() },
	}
}

// FindOrCreate returns the record for id, creating a NotLoaded record with a
// zero reference count on a miss. A hit with a different type fails with a
// type mismatch error.
func (c *Container) FindOrCreate(id AssetID, typ TypeTag) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.findOrCreateLocked(id, typ)
	if err != nil {
		return nil, err
	}
	if rec.refCount == 0 {
		c.candidates[id] = rec
	}
	return rec, nil
}

// Find returns the record for id without creating one.
func (c *Container) Find(id AssetID) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Len returns the number of records in the table.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *Container) findOrCreateLocked(id AssetID, typ TypeTag) (*Record, error) {
	if c.closed {
		return nil, errors.Closed(errors.PhaseLookup, "asset container")
	}
	if !id.IsValid() {
		return nil, errors.InvalidInput(errors.PhaseLookup, "asset id is null")
	}
	if rec, ok := c.records[id]; ok {
		if rec.typ != typ {
			c.log.Error("asset type mismatch",
				zap.Stringer("asset", id),
				zap.String("requested", c.nameOf(typ)),
				zap.String("registered", c.nameOf(rec.typ)),
				zap.Stack("stack"))
			return nil, errors.TypeMismatch(id.String(), c.nameOf(typ), c.nameOf(rec.typ))
		}
		return rec, nil
	}
	rec := newRecord(c, id, typ)
	c.records[id] = rec
	return rec, nil
}

// acquire is FindOrCreate plus a reference, atomically with respect to eviction.
func (c *Container) acquire(id AssetID, typ TypeTag) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.findOrCreateLocked(id, typ)
	if err != nil {
		return nil, err
	}
	rec.refCount++
	delete(c.candidates, id)
	return rec, nil
}

// acquireExisting takes a reference on an existing record only.
func (c *Container) acquireExisting(id AssetID) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok || c.closed {
		return nil, false
	}
	rec.refCount++
	delete(c.candidates, id)
	return rec, true
}

func (c *Container) retain(rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec.refCount++
	delete(c.candidates, rec.id)
}

// Release drops one reference. See the Container doc for when the record is evicted.
func (c *Container) Release(rec *Record) error {
	return c.release(rec, nil)
}

func (c *Container) release(rec *Record, listenerIDs []uint64) error {
	c.mu.Lock()
	if rec.refCount <= 0 {
		c.mu.Unlock()
		return errors.InvalidInput(errors.PhaseLookup, "release of unreferenced asset "+rec.id.String())
	}
	rec.removeListeners(listenerIDs)
	rec.refCount--
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	var evicted *Record
	if rec.refCount == 0 {
		if c.suspend == 0 && rec.inflight == 0 &&
			(rec.status == StatusNotLoaded || rec.status == StatusError) &&
			c.records[rec.id] == rec {
			delete(c.records, rec.id)
			delete(c.candidates, rec.id)
			evicted = rec
		} else {
			c.candidates[rec.id] = rec
		}
	}
	c.mu.Unlock()

	if evicted != nil {
		c.finalize(evicted)
		c.post(queuedEvent{kind: evUnloaded, id: evicted.id, typ: evicted.typ})
	}
	return nil
}

// sweep evicts candidates that are still unreferenced and idle.
func (c *Container) sweep() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suspend > 0 || len(c.candidates) == 0 {
		return nil
	}
	var evicted []*Record
	for id, rec := range c.candidates {
		if c.records[id] != rec {
			delete(c.candidates, id)
			continue
		}
		if rec.refCount > 0 {
			delete(c.candidates, id)
			continue
		}
		if rec.inflight > 0 {
			continue
		}
		delete(c.candidates, id)
		delete(c.records, id)
		evicted = append(evicted, rec)
	}
	return evicted
}

// finalize drops the payloads of an evicted record, resets it to NotLoaded
// and releases the references they held. Must be called without the lock.
func (c *Container) finalize(rec *Record) {
	c.mu.Lock()
	payload, previous := rec.payload, rec.previous
	deps, prevDeps := rec.deps, rec.prevDeps
	rec.payload, rec.previous, rec.deps, rec.prevDeps = nil, nil, nil, nil
	rec.status, rec.err, rec.reloading = StatusNotLoaded, nil, false
	rec.listeners = nil
	rec.signal()
	c.mu.Unlock()

	dropPayload(previous)
	dropPayload(payload)
	c.releaseAll(prevDeps)
	c.releaseAll(deps)

	c.log.Debug("asset evicted", zap.Stringer("asset", rec.id), zap.String("type", c.nameOf(rec.typ)))
}

func (c *Container) releaseAll(handles []*Handle) {
	for _, h := range handles {
		h.Release()
	}
}

func dropPayload(p any) {
	switch v := p.(type) {
	case nil:
	case Dropper:
		v.Drop()
	case io.Closer:
		_ = v.Close()
	}
}

// SuspendRelease stops all eviction until the matching ResumeRelease.
func (c *Container) SuspendRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspend++
}

// ResumeRelease undoes one SuspendRelease. When the last suspension ends,
// every unreferenced record is evicted.
func (c *Container) ResumeRelease() {
	c.mu.Lock()
	if c.suspend == 0 {
		c.mu.Unlock()
		return
	}
	c.suspend--
	if c.suspend > 0 {
		c.mu.Unlock()
		return
	}
	for id, rec := range c.records {
		if rec.refCount == 0 {
			c.candidates[id] = rec
		}
	}
	c.mu.Unlock()

	for _, rec := range c.sweep() {
		c.finalize(rec)
		c.post(queuedEvent{kind: evUnloaded, id: rec.id, typ: rec.typ})
	}
}

// post appends an event to the completion queue. Safe from any goroutine.
func (c *Container) post(ev queuedEvent) {
	c.qmu.Lock()
	c.queue = append(c.queue, ev)
	c.qmu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// drain discards every event not yet applied and returns them.
func (c *Container) drain() []queuedEvent {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	events := append(c.batch, c.queue...)
	c.batch, c.queue = nil, nil
	return events
}

// Pending returns the number of queued events not yet dispatched.
func (c *Container) Pending() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.batch) + len(c.queue)
}

// next pops the oldest event of the batch being dispatched.
func (c *Container) next() (queuedEvent, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.batch) == 0 {
		return queuedEvent{}, false
	}
	ev := c.batch[0]
	c.batch[0] = queuedEvent{}
	c.batch = c.batch[1:]
	return ev, true
}

// DispatchEvents evicts due candidates, then applies every queued event in
// order and invokes callbacks. It is the only place where load results
// become visible. Events posted by callbacks are applied on the next call.
//
// A callback may call DispatchEvents again. The nested pump first applies
// what is left of the outer batch, then everything queued since, so events
// are never reordered; the outer pump returns once the batch is empty.
func (c *Container) DispatchEvents() int {
	if c.dispatching.Load() {
		return c.pump()
	}
	c.pumpMu.Lock()
	defer c.pumpMu.Unlock()
	c.dispatching.Store(true)
	defer c.dispatching.Store(false)
	return c.pump()
}

func (c *Container) pump() int {
	for _, rec := range c.sweep() {
		c.finalize(rec)
		c.notify(Event{Type: EventUnloaded, ID: rec.id, AssetType: rec.typ, Status: rec.status})
	}

	c.qmu.Lock()
	c.batch = append(c.batch, c.queue...)
	c.queue = nil
	c.qmu.Unlock()

	n := 0
	for {
		ev, ok := c.next()
		if !ok {
			return n
		}
		c.apply(ev)
		n++
	}
}

func (c *Container) apply(ev queuedEvent) {
	switch ev.kind {
	case evFunc:
		ev.fn()
		return
	case evUnloaded:
		c.notify(Event{Type: EventUnloaded, ID: ev.id, AssetType: ev.typ})
		return
	}

	c.mu.Lock()
	rec, ok := c.records[ev.id]
	if !ok {
		c.mu.Unlock()
		if ev.kind == evCompleted {
			dropPayload(ev.payload)
			c.releaseAll(ev.deps)
		}
		return
	}

	var (
		out     []Event
		drop    any
		release []*Handle
	)
	stale := ev.gen != rec.generation

	switch ev.kind {
	case evQueued:
		if !stale {
			rec.toQueued()
			rec.signal()
			if rec.reloading {
				out = append(out, rec.event(EventPreReload))
			}
		}

	case evStarted:
		if !stale && rec.status == StatusQueued {
			rec.status = StatusLoading
			rec.signal()
		}

	case evCompleted:
		rec.inflight--
		if stale {
			drop, release = ev.payload, ev.deps
			c.log.Debug("discarding stale completion",
				zap.Stringer("asset", rec.id),
				zap.Uint64("generation", ev.gen),
				zap.Uint64("current", rec.generation))
			break
		}
		if ev.publish {
			// readers may still hold the replaced payload; the edited copy
			// shares its dependency handles
			ev.deps = append(rec.deps, rec.prevDeps...)
		} else {
			drop, release = rec.previous, rec.prevDeps
		}
		eventType := EventReady
		if rec.reloading {
			eventType = EventReloaded
		}
		rec.payload, rec.deps = ev.payload, ev.deps
		rec.previous, rec.prevDeps = nil, nil
		rec.err = nil
		rec.status = StatusReady
		rec.reloading = false
		if rec.refCount == 0 {
			c.candidates[rec.id] = rec
		}
		rec.signal()
		out = append(out, rec.event(eventType))

	case evFailed:
		rec.inflight--
		if stale {
			c.log.Debug("discarding stale failure",
				zap.Stringer("asset", rec.id),
				zap.Uint64("generation", ev.gen),
				zap.Uint64("current", rec.generation))
			break
		}
		drop, release = rec.previous, rec.prevDeps
		eventType := EventError
		if rec.reloading {
			eventType = EventReloadError
		}
		rec.payload, rec.deps = nil, nil
		rec.previous, rec.prevDeps = nil, nil
		rec.err = ev.err
		rec.status = StatusError
		rec.reloading = false
		if rec.refCount == 0 {
			c.candidates[rec.id] = rec
		}
		rec.signal()
		level := zap.ErrorLevel
		if errors.Is(ev.err, errors.ErrClosed) {
			level = zap.DebugLevel
		}
		if ce := c.log.Check(level, "asset load failed"); ce != nil {
			ce.Write(
				zap.Stringer("asset", rec.id),
				zap.String("type", c.nameOf(rec.typ)),
				zap.String("hint", rec.hint),
				zap.Error(ev.err))
		}
		out = append(out, rec.event(eventType))
	}

	var listeners []func(Event)
	if len(out) > 0 {
		listeners = rec.listenerSnapshot()
	}
	c.mu.Unlock()

	dropPayload(drop)
	c.releaseAll(release)

	for _, e := range out {
		for _, fn := range listeners {
			fn(e)
		}
		c.notify(e)
	}
}

// Subscribe adds an observer for every applied event.
func (c *Container) Subscribe(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, o)
}

// Unsubscribe removes an observer.
func (c *Container) Unsubscribe(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for i, obs := range c.observers {
		if obs == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Container) notify(e Event) {
	c.obsMu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.obsMu.RUnlock()

	for _, o := range observers {
		o.OnAssetEvent(e)
	}
}

// addListener registers a per-handle callback and returns its id.
func (c *Container) addListener(rec *Record, fn func(Event)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextLsn++
	rec.listeners = append(rec.listeners, listener{id: c.nextLsn, fn: fn})
	return c.nextLsn
}

// close marks the container closed and evicts every record regardless of
// reference count.
func (c *Container) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	records := make([]*Record, 0, len(c.records))
	for _, rec := range c.records {
		records = append(records, rec)
	}
	c.records = make(map[AssetID]*Record)
	c.candidates = make(map[AssetID]*Record)
	c.mu.Unlock()

	for _, rec := range records {
		c.finalize(rec)
	}
}

func (c *Container) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Snapshot reports per-status record counts.
func (c *Container) Snapshot() map[Status]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Status]int)
	for _, rec := range c.records {
		out[rec.status]++
	}
	return out
}

// Records returns every record currently in the table.
func (c *Container) Records() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Record, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	return out
}
