package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/tetratelabs/wazero"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

// Module is a compiled WebAssembly module payload.
type Module struct {
	Compiled wazero.CompiledModule
	Name     string
	Exports  []string
	Imports  []string
}

// Drop releases the compiled code.
func (m *Module) Drop() {
	if m.Compiled != nil {
		_ = m.Compiled.Close(context.Background())
	}
}

// WasmModule compiles module bytes with rt. The compiled module is closed
// when its record is evicted or superseded by a reload.
func WasmModule(rt wazero.Runtime) asset.Handler {
	return asset.HandlerFunc(func(lc *asset.LoadContext, data []byte) (any, error) {
		compiled, err := rt.CompileModule(lc.Context(), data)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "compile wasm module")
		}
		m := &Module{Compiled: compiled, Name: compiled.Name()}
		for name := range compiled.ExportedFunctions() {
			m.Exports = append(m.Exports, name)
		}
		sort.Strings(m.Exports)
		for _, def := range compiled.ImportedFunctions() {
			module, name, _ := def.Import()
			m.Imports = append(m.Imports, module+"."+name)
		}
		return m, nil
	})
}

// WITPackage is a resolved WIT package payload.
type WITPackage struct {
	Resolve *wit.Resolve
}

// Worlds returns the world names in declaration order.
func (p *WITPackage) Worlds() []string {
	names := make([]string, 0, len(p.Resolve.Worlds))
	for _, w := range p.Resolve.Worlds {
		names = append(names, w.Name)
	}
	return names
}

// WIT decodes the JSON form of a WIT package, as produced by
// "wasm-tools component wit --json".
func WIT() asset.Handler {
	return asset.HandlerFunc(func(lc *asset.LoadContext, data []byte) (any, error) {
		// DecodeJSON tolerates truncated input, so check the shape first
		var shape struct {
			Worlds   json.RawMessage `json:"worlds"`
			Packages json.RawMessage `json:"packages"`
		}
		if !json.Valid(data) {
			return nil, errors.InvalidInput(errors.PhaseLoad, "wit asset is not valid json")
		}
		if err := json.Unmarshal(data, &shape); err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "wit asset is not a json object")
		}
		if shape.Worlds == nil || shape.Packages == nil {
			return nil, errors.InvalidInput(errors.PhaseLoad, "wit asset has no worlds or packages")
		}
		res, err := wit.DecodeJSON(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "decode wit json")
		}
		return &WITPackage{Resolve: res}, nil
	})
}
