package asset

import (
	"fmt"
	"reflect"

	"github.com/jinzhu/copier"

	"github.com/wippyai/asset-runtime/errors"
)

// Asset is a typed view of a Handle. T is the payload type exactly as the
// handler returns it, usually a pointer.
type Asset[T any] struct {
	*Handle
}

// Get returns the typed payload. It fails with a not ready error before the
// record is Ready and with a type mismatch if the payload is not a T.
func (a Asset[T]) Get() (T, error) {
	var zero T
	if a.Handle == nil {
		return zero, errors.InvalidInput(errors.PhaseLookup, "get on zero asset")
	}
	v, err := a.Handle.Get()
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.TypeMismatch(a.ID().String(), reflect.TypeFor[T]().String(), fmt.Sprintf("%T", v))
	}
	return t, nil
}

// Clone returns an independent typed handle.
func (a Asset[T]) Clone() Asset[T] {
	return Asset[T]{a.Handle.Clone()}
}

// Register installs h for payload type T under a tag derived from name.
func Register[T any](m *Manager, name string, h Handler) (TypeTag, error) {
	tag := NewTypeTag(name)
	if err := m.registerHandler(tag, name, reflect.TypeFor[T](), h); err != nil {
		return TypeTag{}, err
	}
	return tag, nil
}

// TypeOf returns the tag registered for payload type T.
func TypeOf[T any](m *Manager) (TypeTag, error) {
	t := reflect.TypeFor[T]()
	tag, ok := m.registry.tagOf(t)
	if !ok {
		return TypeTag{}, errors.UnknownType(errors.PhaseLookup, "", t.String())
	}
	return tag, nil
}

// CreateAs is the typed CreateAsset.
func CreateAs[T any](m *Manager, id AssetID, behavior LoadBehavior) (Asset[T], error) {
	tag, err := TypeOf[T](m)
	if err != nil {
		return Asset[T]{}, err
	}
	h, err := m.CreateAsset(id, tag, behavior)
	if err != nil {
		return Asset[T]{}, err
	}
	return Asset[T]{h}, nil
}

// Get is the typed GetAsset.
func Get[T any](m *Manager, id AssetID, behavior LoadBehavior) (Asset[T], error) {
	tag, err := TypeOf[T](m)
	if err != nil {
		return Asset[T]{}, err
	}
	h, err := m.GetAsset(id, tag, behavior)
	if err != nil {
		return Asset[T]{}, err
	}
	return Asset[T]{h}, nil
}

// Find is the typed FindAsset. A record of another type is not returned.
func Find[T any](m *Manager, id AssetID, behavior LoadBehavior) (Asset[T], bool) {
	tag, err := TypeOf[T](m)
	if err != nil {
		return Asset[T]{}, false
	}
	h, ok := m.FindAsset(id, behavior)
	if !ok {
		return Asset[T]{}, false
	}
	if h.Type() != tag {
		h.Release()
		return Asset[T]{}, false
	}
	return Asset[T]{h}, true
}

// Edit deep-copies the Ready payload of a, applies fn to the copy and
// publishes it. The shared payload is never mutated in place.
func Edit[T any](m *Manager, a Asset[T], fn func(T) error) error {
	cur, err := a.Get()
	if err != nil {
		return err
	}
	dup, err := deepCopy(cur)
	if err != nil {
		return errors.Wrap(errors.PhaseDispatch, errors.KindInvalidInput, err, "copy payload")
	}
	relinkReferences(cur, dup)
	if err := fn(dup); err != nil {
		return err
	}
	return m.Publish(a.ID(), dup)
}

func deepCopy[T any](src T) (T, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		dst := reflect.New(t.Elem())
		if err := copier.CopyWithOption(dst.Interface(), src, copier.Option{DeepCopy: true}); err != nil {
			var zero T
			return zero, err
		}
		return dst.Interface().(T), nil
	}
	var dst T
	err := copier.CopyWithOption(&dst, src, copier.Option{DeepCopy: true})
	return dst, err
}

// relinkReferences carries resolved handles over to the copy; the copier
// skips unexported fields.
func relinkReferences(src, dst any) {
	from, ok := src.(Referencer)
	if !ok {
		return
	}
	to, ok := dst.(Referencer)
	if !ok {
		return
	}
	a, b := from.AssetReferences(), to.AssetReferences()
	if len(a) != len(b) {
		return
	}
	for i := range a {
		if a[i] != nil && b[i] != nil {
			b[i].handle = a[i].handle
		}
	}
}
