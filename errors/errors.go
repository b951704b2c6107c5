package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLookup   Phase = "lookup"   // cache lookup and handle creation
	PhaseLoad     Phase = "load"     // worker-side read and deserialize
	PhaseDispatch Phase = "dispatch" // owner-side event application
	PhaseParse    Phase = "parse"    // scene document parsing
	PhaseCatalog  Phase = "catalog"  // id and path resolution
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseRuntime  Phase = "runtime"  // manager lifecycle
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindUnknownType       Kind = "unknown_type"
	KindNotReady          Kind = "not_ready"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindNotFound          Kind = "not_found"
	KindLoadFailed        Kind = "load_failed"
	KindCyclicLoad        Kind = "cyclic_load"
	KindClosed            Kind = "closed"
	KindInvalidInput      Kind = "invalid_input"
	KindRegistration      Kind = "already_registered"
)

// Sentinels for errors.Is. They carry no phase and match an error of the
// same kind raised in any phase.
var (
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrUnknownType       = &Error{Kind: KindUnknownType}
	ErrNotReady          = &Error{Kind: KindNotReady}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrLoadFailed        = &Error{Kind: KindLoadFailed}
	ErrCyclicLoad        = &Error{Kind: KindCyclicLoad}
	ErrClosed            = &Error{Kind: KindClosed}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrRegistration      = &Error{Kind: KindRegistration}
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Asset  string
	Type   string
	Path   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Asset != "" {
		b.WriteString(" asset ")
		b.WriteString(e.Asset)
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Asset sets the asset id
func (b *Builder) Asset(id string) *Builder {
	b.err.Asset = id
	return b
}

// Type sets the asset type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Path sets the source path
func (b *Builder) Path(p string) *Builder {
	b.err.Path = p
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates an error for an id already registered under another type
func TypeMismatch(asset, want, have string) *Error {
	return &Error{
		Phase:  PhaseLookup,
		Kind:   KindTypeMismatch,
		Asset:  asset,
		Type:   want,
		Detail: fmt.Sprintf("record holds type %s", have),
	}
}

// UnknownType creates an error for a type with no registered handler
func UnknownType(phase Phase, asset, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownType,
		Asset:  asset,
		Type:   typeName,
		Detail: "no handler registered",
	}
}

// NotReady creates an error for payload access before the record is ready
func NotReady(asset, status string) *Error {
	return &Error{
		Phase:  PhaseLookup,
		Kind:   KindNotReady,
		Asset:  asset,
		Detail: fmt.Sprintf("status is %s", status),
		Value:  status,
	}
}

// UnsupportedFormat creates an error for a document extension with no parser
func UnsupportedFormat(path, ext string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindUnsupportedFormat,
		Path:   path,
		Detail: fmt.Sprintf("no parser for extension %q", ext),
		Value:  ext,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// LoadFailed wraps a worker-side failure
func LoadFailed(asset, path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailed,
		Asset:  asset,
		Path:   path,
		Detail: "deserialize",
		Cause:  cause,
	}
}

// CyclicLoad creates an error for a preload chain that revisits an asset
func CyclicLoad(chain []string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindCyclicLoad,
		Asset:  chain[len(chain)-1],
		Detail: "preload chain " + strings.Join(chain, " -> "),
		Value:  chain,
	}
}

// Closed creates an error for operations on a destroyed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a handler registration error
func Registration(typeName, detail string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindRegistration,
		Type:   typeName,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}
