package asset

import (
	"reflect"
	"sync"

	"github.com/wippyai/asset-runtime/errors"
)

// Handler turns source bytes into a payload for one asset type. Deserialize
// runs on a worker goroutine and must not touch owner-side state except
// through the LoadContext.
type Handler interface {
	Deserialize(lc *LoadContext, data []byte) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(lc *LoadContext, data []byte) (any, error)

// Deserialize calls f.
func (f HandlerFunc) Deserialize(lc *LoadContext, data []byte) (any, error) {
	return f(lc, data)
}

type typeEntry struct {
	h      Handler
	goType reflect.Type
	name   string
	tag    TypeTag
}

// registry maps type tags to handlers, and Go payload types back to tags.
type registry struct {
	byTag map[TypeTag]*typeEntry
	byGo  map[reflect.Type]TypeTag
	mu    sync.RWMutex
}

func newRegistry() *registry {
	return &registry{
		byTag: make(map[TypeTag]*typeEntry),
		byGo:  make(map[reflect.Type]TypeTag),
	}
}

func (r *registry) register(tag TypeTag, name string, goType reflect.Type, h Handler) error {
	if tag.IsZero() {
		return errors.InvalidInput(errors.PhaseLookup, "zero type tag")
	}
	if h == nil {
		return errors.InvalidInput(errors.PhaseLookup, "nil handler for "+name)
	}
	if name == "" {
		name = tag.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byTag[tag]; ok {
		return errors.Registration(name, "tag already registered as "+prev.name)
	}
	if goType != nil {
		if prev, ok := r.byGo[goType]; ok {
			return errors.Registration(name, "go type "+goType.String()+" already registered as "+r.byTag[prev].name)
		}
		r.byGo[goType] = tag
	}
	r.byTag[tag] = &typeEntry{tag: tag, name: name, goType: goType, h: h}
	return nil
}

func (r *registry) unregister(tag TypeTag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byTag[tag]
	if !ok {
		return false
	}
	delete(r.byTag, tag)
	if e.goType != nil {
		delete(r.byGo, e.goType)
	}
	return true
}

func (r *registry) lookup(tag TypeTag) (*typeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byTag[tag]
	return e, ok
}

func (r *registry) tagOf(t reflect.Type) (TypeTag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.byGo[t]
	return tag, ok
}

func (r *registry) nameOf(tag TypeTag) string {
	if e, ok := r.lookup(tag); ok {
		return e.name
	}
	return tag.String()
}

// Types returns the registered type names keyed by tag.
func (r *registry) types() map[TypeTag]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[TypeTag]string, len(r.byTag))
	for tag, e := range r.byTag {
		out[tag] = e.name
	}
	return out
}
