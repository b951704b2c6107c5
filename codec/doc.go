// Package codec provides asset handlers that turn source bytes into payloads.
//
// Structured documents:
//
//	asset.Register[*Mesh](m, "Mesh", codec.JSON[Mesh]())
//	asset.Register[*Material](m, "Material", codec.YAML[Material]())
//
// Decoded values that implement asset.Referencer have their references
// resolved through the load context, so nested assets are referenced and
// loaded according to each reference's load behavior.
//
// Binary assets:
//
//	codec.Bytes()             // raw bytes
//	codec.WasmModule(runtime) // compiled WebAssembly module, closed on eviction
//	codec.WIT()               // WIT package resolved from its JSON form
//
// RegisterBuiltins installs the generic document, blob and WebAssembly
// handlers under the tags exported by this package.
package codec
