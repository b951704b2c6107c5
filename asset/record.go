package asset

// Record is the cache-owned state of one asset. All fields are guarded by
// the owning Container's lock; status and payload change only while the
// pump applies events, apart from the synchronous Queued transition of an
// owner-side submit.
type Record struct {
	c         *Container
	payload   any
	previous  any
	err       error
	changed   chan struct{}
	listeners []listener
	deps      []*Handle
	prevDeps  []*Handle
	hint      string

	id         AssetID
	typ        TypeTag
	generation uint64
	refCount   int
	inflight   int
	status     Status
	behavior   LoadBehavior
	reloading  bool
}

func newRecord(c *Container, id AssetID, typ TypeTag) *Record {
	return &Record{
		c:        c,
		id:       id,
		typ:      typ,
		changed:  make(chan struct{}),
		behavior: DefaultLoadBehavior,
	}
}

// ID returns the asset id.
func (r *Record) ID() AssetID { return r.id }

// Type returns the asset type tag.
func (r *Record) Type() TypeTag { return r.typ }

// Hint returns the source path recorded by the last load, if any.
func (r *Record) Hint() string {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.hint
}

// Status returns the externally visible load status.
func (r *Record) Status() Status {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.status
}

// RefCount returns the number of live handles.
func (r *Record) RefCount() int {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.refCount
}

// Generation returns the generation of the latest submission.
func (r *Record) Generation() uint64 {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.generation
}

// Err returns the failure applied by the last pump, if the record is in Error.
func (r *Record) Err() error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.err
}

// Payload returns the payload and true when the record is Ready and its
// container is open.
func (r *Record) Payload() (any, bool) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.closed || r.status != StatusReady {
		return nil, false
	}
	return r.payload, true
}

// toQueued moves the record into Queued. A Ready payload is hidden until the
// new load completes.
func (r *Record) toQueued() {
	switch r.status {
	case StatusReady:
		r.previous, r.prevDeps = r.payload, r.deps
		r.payload, r.deps = nil, nil
		r.reloading = true
	case StatusError:
		r.reloading = true
	}
	r.status = StatusQueued
}

// signal wakes goroutines waiting for a transition.
func (r *Record) signal() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Record) event(t EventType) Event {
	return Event{
		Type:       t,
		ID:         r.id,
		AssetType:  r.typ,
		Generation: r.generation,
		Status:     r.status,
		Err:        r.err,
	}
}

type listener struct {
	fn func(Event)
	id uint64
}

func (r *Record) listenerSnapshot() []func(Event) {
	if len(r.listeners) == 0 {
		return nil
	}
	out := make([]func(Event), len(r.listeners))
	for i, l := range r.listeners {
		out[i] = l.fn
	}
	return out
}

func (r *Record) removeListeners(ids []uint64) {
	if len(ids) == 0 {
		return
	}
	kept := r.listeners[:0]
	for _, l := range r.listeners {
		drop := false
		for _, id := range ids {
			if l.id == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, l)
		}
	}
	r.listeners = kept
}
