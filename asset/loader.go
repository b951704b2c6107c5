package asset

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/asset-runtime/errors"
)

// AssetInfo is what the catalog knows about an asset.
type AssetInfo struct {
	Path        string
	WatchFolder string
	ID          AssetID
	Type        TypeTag
	Size        int64
}

// Catalog resolves ids to source locations and back.
type Catalog interface {
	AssetInfo(ctx context.Context, id AssetID) (AssetInfo, error)
	AssetID(ctx context.Context, path string) (AssetID, error)
}

// Source provides the bytes of an asset.
type Source interface {
	ReadAsset(ctx context.Context, info AssetInfo) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, info AssetInfo) ([]byte, error)

// ReadAsset calls f.
func (f SourceFunc) ReadAsset(ctx context.Context, info AssetInfo) ([]byte, error) {
	return f(ctx, info)
}

// Scheduler runs load jobs off the owner goroutine. Submit must not block.
type Scheduler interface {
	Submit(job func(ctx context.Context))
	Wait()
	Close() error
}

// Loader performs deserialization on the scheduler and reports results to
// the container's event queue. It never changes a record's visible status
// except for the synchronous Queued transition of an owner-side Submit.
type Loader struct {
	ctx     context.Context
	c       *Container
	reg     *registry
	sched   Scheduler
	catalog Catalog
	source  Source
	log     *zap.Logger
	cancel  context.CancelFunc
}

// Submit queues a load of rec. A nil src uses the loader's default source.
// Any load already in flight for rec becomes stale.
func (l *Loader) Submit(rec *Record, src Source) {
	gen, _ := l.begin(rec, true, true)
	l.schedule(rec, gen, src)
}

// submitIdle submits rec only when it is NotLoaded with nothing in flight.
func (l *Loader) submitIdle(rec *Record, owner bool) bool {
	gen, ok := l.begin(rec, owner, false)
	if ok {
		l.schedule(rec, gen, nil)
	}
	return ok
}

// begin assigns the next generation. Owner-side submits move the record to
// Queued immediately; worker-side submits leave that to the pump.
func (l *Loader) begin(rec *Record, owner, force bool) (uint64, bool) {
	c := l.c
	c.mu.Lock()
	if !force && (rec.status != StatusNotLoaded || rec.inflight > 0) {
		c.mu.Unlock()
		return 0, false
	}
	rec.generation++
	rec.inflight++
	gen := rec.generation
	if owner {
		rec.toQueued()
		rec.signal()
	}
	c.mu.Unlock()

	c.post(queuedEvent{kind: evQueued, id: rec.id, typ: rec.typ, gen: gen})
	l.log.Debug("asset load submitted",
		zap.Stringer("asset", rec.id),
		zap.String("type", c.nameOf(rec.typ)),
		zap.Uint64("generation", gen))
	return gen, true
}

func (l *Loader) schedule(rec *Record, gen uint64, src Source) {
	l.sched.Submit(func(ctx context.Context) {
		// Destroy cancels jobs even on a scheduler the manager does not close
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if l.ctx.Err() != nil {
			cancel()
		} else {
			defer context.AfterFunc(l.ctx, cancel)()
		}

		l.c.post(queuedEvent{kind: evStarted, id: rec.id, typ: rec.typ, gen: gen})
		payload, deps, err := l.run(ctx, rec, src, nil)
		l.finish(rec, gen, payload, deps, err)
	})
}

func (l *Loader) finish(rec *Record, gen uint64, payload any, deps []*Handle, err error) {
	if err != nil {
		l.c.post(queuedEvent{kind: evFailed, id: rec.id, typ: rec.typ, gen: gen, err: err})
		return
	}
	l.c.post(queuedEvent{kind: evCompleted, id: rec.id, typ: rec.typ, gen: gen, payload: payload, deps: deps})
}

// run reads and deserializes one asset. Panics in handlers are converted to
// load failures; on failure every dependency handle taken is released.
func (l *Loader) run(ctx context.Context, rec *Record, src Source, chain []AssetID) (payload any, deps []*Handle, err error) {
	lc := &LoadContext{
		ctx:    ctx,
		loader: l,
		rec:    rec,
		chain:  append(append([]AssetID(nil), chain...), rec.id),
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseLoad, errors.KindLoadFailed).
				Asset(rec.id.String()).
				Type(l.c.nameOf(rec.typ)).
				Path(lc.info.Path).
				Value(r).
				Detail("handler panic: %v", r).
				Build()
		}
		if err != nil {
			dropPayload(payload)
			payload = nil
			l.c.releaseAll(lc.takeDeps())
			deps = nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, nil, errors.Wrap(errors.PhaseLoad, errors.KindClosed, err, "load cancelled")
	}
	entry, ok := l.reg.lookup(rec.typ)
	if !ok {
		return nil, nil, errors.New(errors.PhaseLoad, errors.KindLoadFailed).
			Asset(rec.id.String()).
			Cause(errors.UnknownType(errors.PhaseLoad, rec.id.String(), rec.typ.String())).
			Detail("no handler").
			Build()
	}
	info, err := l.resolve(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	lc.info = info

	if src == nil {
		src = l.source
	}
	data, err := src.ReadAsset(ctx, info)
	if err != nil {
		return nil, nil, errors.LoadFailed(rec.id.String(), info.Path, err)
	}
	payload, err = entry.h.Deserialize(lc, data)
	if err != nil {
		return payload, nil, errors.New(errors.PhaseLoad, errors.KindLoadFailed).
			Asset(rec.id.String()).
			Type(entry.name).
			Path(info.Path).
			Cause(err).
			Detail("deserialize").
			Build()
	}
	if payload == nil {
		return nil, nil, errors.New(errors.PhaseLoad, errors.KindLoadFailed).
			Asset(rec.id.String()).
			Type(entry.name).
			Path(info.Path).
			Detail("handler returned nil payload").
			Build()
	}
	if err := lc.failure(); err != nil {
		return payload, nil, err
	}
	return payload, lc.takeDeps(), nil
}

func (l *Loader) resolve(ctx context.Context, rec *Record) (AssetInfo, error) {
	info := AssetInfo{ID: rec.id, Type: rec.typ, Path: rec.id.String()}
	if l.catalog != nil {
		found, err := l.catalog.AssetInfo(ctx, rec.id)
		if err != nil {
			return info, errors.LoadFailed(rec.id.String(), "", err)
		}
		if !found.Type.IsZero() && found.Type != rec.typ {
			return info, errors.New(errors.PhaseLoad, errors.KindLoadFailed).
				Asset(rec.id.String()).
				Path(found.Path).
				Cause(errors.TypeMismatch(rec.id.String(), l.c.nameOf(rec.typ), l.c.nameOf(found.Type))).
				Detail("catalog type").
				Build()
		}
		found.ID, found.Type = rec.id, rec.typ
		info = found
	}

	l.c.mu.Lock()
	rec.hint = info.Path
	l.c.mu.Unlock()
	return info, nil
}

// preload loads rec inline on the calling worker. Its events are posted
// before the parent's, so the pump applies them first.
func (l *Loader) preload(lc *LoadContext, rec *Record) error {
	for _, id := range lc.chain {
		if id == rec.id {
			names := make([]string, 0, len(lc.chain)+1)
			for _, c := range lc.chain {
				names = append(names, c.String())
			}
			return errors.CyclicLoad(append(names, rec.id.String()))
		}
	}

	l.c.mu.Lock()
	status, failure := rec.status, rec.err
	l.c.mu.Unlock()
	switch status {
	case StatusReady:
		return nil
	case StatusError:
		return errors.Wrap(errors.PhaseLoad, errors.KindLoadFailed, failure, "preload dependency "+rec.id.String())
	}

	gen, _ := l.begin(rec, false, true)
	l.c.post(queuedEvent{kind: evStarted, id: rec.id, typ: rec.typ, gen: gen})
	payload, deps, err := l.run(lc.ctx, rec, nil, lc.chain)
	l.finish(rec, gen, payload, deps, err)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindLoadFailed, err, "preload dependency "+rec.id.String())
	}
	return nil
}

// LoadContext is passed to a Handler while it deserializes one asset.
type LoadContext struct {
	ctx    context.Context
	loader *Loader
	rec    *Record
	err    error
	info   AssetInfo
	chain  []AssetID
	deps   []*Handle
	mu     sync.Mutex
}

// Context returns the job context. It is cancelled when the manager shuts down.
func (lc *LoadContext) Context() context.Context { return lc.ctx }

// Info returns the catalog information of the asset being loaded.
func (lc *LoadContext) Info() AssetInfo { return lc.info }

// ID returns the id of the asset being loaded.
func (lc *LoadContext) ID() AssetID { return lc.rec.id }

// Dependency takes a reference to another asset on behalf of the payload
// being built. The handle is owned by the loaded record and released when
// its payload is dropped.
//
// NoLoad only references. QueueLoad submits the dependency independently if
// it is idle. PreLoad loads it before this asset completes; a failure fails
// this asset too.
func (lc *LoadContext) Dependency(id AssetID, typ TypeTag, behavior LoadBehavior) (*Handle, error) {
	l := lc.loader
	rec, err := l.c.acquire(id, typ)
	if err != nil {
		if behavior == PreLoad {
			lc.fail(err)
		}
		return nil, err
	}
	h := newHandle(rec, behavior)
	lc.mu.Lock()
	lc.deps = append(lc.deps, h)
	lc.mu.Unlock()

	switch behavior {
	case QueueLoad:
		l.submitIdle(rec, false)
	case PreLoad:
		if err := l.preload(lc, rec); err != nil {
			lc.fail(err)
			return h, err
		}
	}
	return h, nil
}

// Resolve takes a dependency for every reference and stores the handle on it.
func (lc *LoadContext) Resolve(refs ...*Reference) error {
	var first error
	for _, ref := range refs {
		if ref == nil || !ref.ID.IsValid() {
			continue
		}
		h, err := lc.Dependency(ref.ID, ref.Type, ref.Behavior)
		if err != nil && first == nil {
			first = err
		}
		ref.handle = h
	}
	return first
}

func (lc *LoadContext) fail(err error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.err == nil {
		lc.err = err
	}
}

func (lc *LoadContext) failure() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.err
}

func (lc *LoadContext) takeDeps() []*Handle {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	deps := lc.deps
	lc.deps = nil
	return deps
}

// Reference is an embedded asset reference inside a payload.
type Reference struct {
	handle   *Handle
	ID       AssetID      `json:"id" yaml:"id"`
	Type     TypeTag      `json:"type" yaml:"type"`
	Behavior LoadBehavior `json:"load,omitempty" yaml:"load,omitempty"`
}

// Handle returns the handle taken when the owning payload was loaded. It is
// owned by that payload; Clone it to keep the asset beyond the payload.
func (r *Reference) Handle() *Handle { return r.handle }

// Referencer is implemented by payloads that carry asset references.
// Codecs resolve them after decoding.
type Referencer interface {
	AssetReferences() []*Reference
}
