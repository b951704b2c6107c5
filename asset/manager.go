package asset

import (
	"context"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/asset-runtime/errors"
	"github.com/wippyai/asset-runtime/jobs"
)

// Descriptor configures a Manager.
type Descriptor struct {
	// Scheduler runs load jobs. When nil a jobs.Pool with Workers slots is created
	// and owned by the Manager.
	Scheduler Scheduler
	// Catalog resolves ids to paths. Optional; without it the id string is the path.
	Catalog Catalog
	// Source provides asset bytes. Required.
	Source Source
	// Logger overrides the package logger.
	Logger *zap.Logger
	// Workers bounds the default pool. Zero means one per CPU.
	Workers int
}

// Manager composes the container, the handler registry and the loader.
// DispatchEvents defines the owner goroutine: callbacks and visible status
// changes happen only inside it. DispatchEvents, WaitForReady and Destroy
// must be called from the owner, including from its callbacks; every other
// method may be called from any goroutine.
type Manager struct {
	container *Container
	registry  *registry
	loader    *Loader
	sched     Scheduler
	log       *zap.Logger
	closed    atomic.Bool
	ownsSched bool
}

// Create builds a Manager from desc.
func Create(desc Descriptor) (*Manager, error) {
	if desc.Source == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "descriptor has no source")
	}
	log := desc.Logger
	if log == nil {
		log = Logger()
	}
	sched, owned := desc.Scheduler, false
	if sched == nil {
		sched, owned = jobs.NewPool(desc.Workers), true
	}
	ctx, cancel := context.WithCancel(context.Background())

	reg := newRegistry()
	c := NewContainer(log)
	c.nameOf = reg.nameOf

	m := &Manager{
		container: c,
		registry:  reg,
		sched:     sched,
		ownsSched: owned,
		log:       log,
		loader: &Loader{
			ctx:     ctx,
			cancel:  cancel,
			c:       c,
			reg:     reg,
			sched:   sched,
			catalog: desc.Catalog,
			source:  desc.Source,
			log:     log,
		},
	}
	log.Debug("asset manager created")
	return m, nil
}

// Destroy stops accepting work, cancels and waits for running jobs, applies
// their results, then drops every record and payload. Handles still held
// become invalid. A caller-supplied Scheduler is waited on but not closed.
// Destroy is idempotent.
func (m *Manager) Destroy() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.loader.cancel()
	var err error
	if m.ownsSched {
		err = m.sched.Close()
	}
	m.sched.Wait()
	m.DispatchEvents()
	m.container.close()
	// releases posted by dropped payloads
	m.container.drain()
	m.log.Debug("asset manager destroyed")
	return err
}

// Container exposes the record table.
func (m *Manager) Container() *Container { return m.container }

// Loader exposes the loader.
func (m *Manager) Loader() *Loader { return m.loader }

// RegisterHandler installs the handler for a type tag.
func (m *Manager) RegisterHandler(tag TypeTag, name string, h Handler) error {
	return m.registerHandler(tag, name, nil, h)
}

func (m *Manager) registerHandler(tag TypeTag, name string, goType reflect.Type, h Handler) error {
	if m.closed.Load() {
		return errors.Closed(errors.PhaseRuntime, "asset manager")
	}
	if err := m.registry.register(tag, name, goType, h); err != nil {
		return err
	}
	m.log.Debug("asset handler registered", zap.String("type", name), zap.Stringer("tag", tag))
	return nil
}

// UnregisterHandler removes the handler for tag. It fails while any record
// of that type is alive.
func (m *Manager) UnregisterHandler(tag TypeTag) error {
	for _, rec := range m.container.Records() {
		if rec.typ == tag {
			return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Type(m.registry.nameOf(tag)).
				Asset(rec.id.String()).
				Detail("records of this type are still alive").
				Build()
		}
	}
	if !m.registry.unregister(tag) {
		return errors.UnknownType(errors.PhaseRuntime, "", tag.String())
	}
	return nil
}

// HandlerTypes returns registered type names keyed by tag.
func (m *Manager) HandlerTypes() map[TypeTag]string {
	return m.registry.types()
}

// TypeName returns the registered name of tag, or the tag string.
func (m *Manager) TypeName(tag TypeTag) string {
	return m.registry.nameOf(tag)
}

// CreateAsset returns a handle to id without loading it. A new id needs a
// registered handler for typ.
func (m *Manager) CreateAsset(id AssetID, typ TypeTag, behavior LoadBehavior) (*Handle, error) {
	if m.closed.Load() {
		return nil, errors.Closed(errors.PhaseLookup, "asset manager")
	}
	if _, ok := m.registry.lookup(typ); !ok {
		if _, exists := m.container.Find(id); !exists {
			return nil, errors.UnknownType(errors.PhaseLookup, id.String(), typ.String())
		}
	}
	rec, err := m.container.acquire(id, typ)
	if err != nil {
		return nil, err
	}
	return newHandle(rec, behavior), nil
}

// FindAsset returns a handle only if the record already exists.
func (m *Manager) FindAsset(id AssetID, behavior LoadBehavior) (*Handle, bool) {
	if m.closed.Load() {
		return nil, false
	}
	rec, ok := m.container.acquireExisting(id)
	if !ok {
		return nil, false
	}
	return newHandle(rec, behavior), true
}

// GetAsset returns a handle and makes sure a load was submitted. A record in
// Error is not resubmitted; use ReloadAsset.
func (m *Manager) GetAsset(id AssetID, typ TypeTag, behavior LoadBehavior) (*Handle, error) {
	h, err := m.CreateAsset(id, typ, behavior)
	if err != nil {
		return nil, err
	}
	if behavior != NoLoad {
		m.loader.submitIdle(h.ref.rec, true)
	}
	return h, nil
}

// ReloadAsset resubmits an existing record regardless of its status. The
// new result supersedes any payload and any load still in flight.
func (m *Manager) ReloadAsset(id AssetID) error {
	if m.closed.Load() {
		return errors.Closed(errors.PhaseLookup, "asset manager")
	}
	rec, ok := m.container.Find(id)
	if !ok {
		return errors.NotFound(errors.PhaseLookup, "asset", id.String())
	}
	m.loader.Submit(rec, nil)
	return nil
}

// DispatchEvents is the pump. It must be called regularly from the owner
// goroutine; it applies queued results and runs callbacks, returning the
// number of events applied.
func (m *Manager) DispatchEvents() int {
	m.container.notify(Event{Type: EventDispatchBegin})
	n := m.container.DispatchEvents()
	m.container.notify(Event{Type: EventDispatchEnd})
	return n
}

// WaitForReady blocks until h is Ready or Error, pumping events while it
// waits. Only the owner goroutine may call it; called from a callback it
// pumps the nested events.
func (m *Manager) WaitForReady(ctx context.Context, h *Handle) error {
	if !h.live() {
		return errors.InvalidInput(errors.PhaseLookup, "wait on released or zero handle")
	}
	if m.closed.Load() {
		return errors.Closed(errors.PhaseLookup, "asset manager")
	}
	rec := h.ref.rec
	for {
		m.DispatchEvents()
		changed, done, err := rec.waitState()
		if done {
			return err
		}
		select {
		case <-changed:
		case <-m.container.signal:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post runs fn on the owner goroutine during the next pump.
func (m *Manager) Post(fn func()) {
	if fn == nil {
		return
	}
	m.container.post(queuedEvent{kind: evFunc, fn: fn})
}

// Publish replaces the payload of an existing record with an edited copy.
// It is applied by the next pump like a completed load and makes any load
// in flight stale. The replaced payload is not dropped, since other holders
// may still read it.
func (m *Manager) Publish(id AssetID, payload any) error {
	if payload == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "publish of nil payload")
	}
	if m.closed.Load() {
		return errors.Closed(errors.PhaseDispatch, "asset manager")
	}
	c := m.container
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return errors.NotFound(errors.PhaseDispatch, "asset", id.String())
	}
	rec.generation++
	rec.inflight++
	gen := rec.generation
	c.mu.Unlock()

	c.post(queuedEvent{kind: evCompleted, id: id, typ: rec.typ, gen: gen, payload: payload, publish: true})
	return nil
}

// SuspendRelease stops eviction until ResumeRelease.
func (m *Manager) SuspendRelease() { m.container.SuspendRelease() }

// ResumeRelease resumes eviction and evicts every unreferenced record.
func (m *Manager) ResumeRelease() { m.container.ResumeRelease() }

// Subscribe adds an observer for all asset events and dispatch notifications.
func (m *Manager) Subscribe(o Observer) { m.container.Subscribe(o) }

// Unsubscribe removes an observer.
func (m *Manager) Unsubscribe(o Observer) { m.container.Unsubscribe(o) }

// Stats is a point-in-time snapshot for tooling.
type Stats struct {
	ByStatus map[Status]int
	Records  int
	Pending  int
	Active   int
}

// Stats returns a snapshot of the manager.
func (m *Manager) Stats() Stats {
	by := m.container.Snapshot()
	total := 0
	for _, n := range by {
		total += n
	}
	s := Stats{ByStatus: by, Records: total, Pending: m.container.Pending()}
	if a, ok := m.sched.(interface{ Active() int }); ok {
		s.Active = a.Active()
	}
	return s
}
