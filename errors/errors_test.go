package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLookup,
				Kind:   KindTypeMismatch,
				Asset:  "{guid}:0",
				Type:   "MeshAsset",
				Path:   "meshes/box.json",
				Detail: "record holds type Texture",
			},
			contains: []string{"[lookup]", "type_mismatch", "{guid}:0", "meshes/box.json", "MeshAsset", "record holds type Texture"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDispatch,
				Kind:  KindNotFound,
			},
			contains: []string{"[dispatch]", "not_found"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindLoadFailed,
				Detail: "deserialize",
				Cause:  errors.New("unexpected EOF"),
			},
			contains: []string{"[load]", "load_failed", "deserialize", "caused by", "unexpected EOF"},
		},
		{
			name:     "sentinel has no phase",
			err:      ErrNotReady,
			contains: []string{"not_ready"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := LoadFailed("a", "a.json", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseLookup,
		Kind:  KindTypeMismatch,
		Asset: "foo",
	}

	if !err.Is(&Error{Phase: PhaseLookup, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseLoad, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseLookup, Kind: KindNotReady}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Error("errors.Is should match phase-less sentinel")
	}
	if errors.Is(err, ErrNotReady) {
		t.Error("errors.Is should not match other sentinel")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLoad, KindLoadFailed).
		Asset("{a}:1").
		Type("Texture").
		Path("tex/a.png").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "png", "jpg").
		Build()

	if err.Phase != PhaseLoad {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLoad)
	}
	if err.Kind != KindLoadFailed {
		t.Errorf("Kind = %v, want %v", err.Kind, KindLoadFailed)
	}
	if err.Asset != "{a}:1" || err.Type != "Texture" || err.Path != "tex/a.png" {
		t.Errorf("Asset=%q Type=%q Path=%q", err.Asset, err.Type, err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected png, got jpg" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		sentinel *Error
	}{
		{"TypeMismatch", TypeMismatch("a", "Mesh", "Texture"), ErrTypeMismatch},
		{"UnknownType", UnknownType(PhaseLookup, "a", "Mesh"), ErrUnknownType},
		{"NotReady", NotReady("a", "Queued"), ErrNotReady},
		{"UnsupportedFormat", UnsupportedFormat("x.fbx", ".fbx"), ErrUnsupportedFormat},
		{"NotFound", NotFound(PhaseCatalog, "asset", "a"), ErrNotFound},
		{"LoadFailed", LoadFailed("a", "a.json", errors.New("bad")), ErrLoadFailed},
		{"CyclicLoad", CyclicLoad([]string{"a", "b", "a"}), ErrCyclicLoad},
		{"Closed", Closed(PhaseRuntime, "manager"), ErrClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("%v does not match sentinel %v", tt.err, tt.sentinel)
			}
		})
	}

	t.Run("CyclicLoad chain", func(t *testing.T) {
		err := CyclicLoad([]string{"a", "b", "a"})
		if !strings.Contains(err.Detail, "a -> b -> a") {
			t.Errorf("Detail = %q", err.Detail)
		}
		if err.Asset != "a" {
			t.Errorf("Asset = %q, want a", err.Asset)
		}
	})

	t.Run("UnsupportedFormat value", func(t *testing.T) {
		err := UnsupportedFormat("x.fbx", ".fbx")
		if err.Value != ".fbx" {
			t.Errorf("Value = %v", err.Value)
		}
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk")
	err := Wrap(PhaseConfig, KindInvalidInput, cause, "read config")
	if err.Phase != PhaseConfig || err.Kind != KindInvalidInput {
		t.Fatalf("unexpected %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("Wrap should keep cause")
	}
}

func TestIsAs(t *testing.T) {
	err := Wrap(PhaseLoad, KindLoadFailed, NotReady("a", "Queued"), "outer")
	if !Is(err, ErrNotReady) {
		t.Error("Is should reach the wrapped not ready error")
	}
	e, ok := As(err)
	if !ok || e.Kind != KindLoadFailed {
		t.Fatalf("As = %v, %v", e, ok)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Error("As should fail for a plain error")
	}
}
