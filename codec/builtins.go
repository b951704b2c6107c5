package codec

import (
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/asset-runtime/asset"
)

// Type names of the builtin handlers.
const (
	JSONDocumentType = "json"
	YAMLDocumentType = "yaml"
	BlobType         = "blob"
	WasmModuleType   = "wasm"
	WITPackageType   = "wit"
)

// Tags of the builtin handlers.
var (
	JSONDocumentTag = asset.NewTypeTag(JSONDocumentType)
	YAMLDocumentTag = asset.NewTypeTag(YAMLDocumentType)
	BlobTag         = asset.NewTypeTag(BlobType)
	WasmModuleTag   = asset.NewTypeTag(WasmModuleType)
	WITPackageTag   = asset.NewTypeTag(WITPackageType)
)

// RegisterBuiltins installs the document, blob and WIT handlers. When rt
// is not nil the WebAssembly module handler is installed too.
func RegisterBuiltins(m *asset.Manager, rt wazero.Runtime) error {
	if err := m.RegisterHandler(JSONDocumentTag, JSONDocumentType, JSON[Document]()); err != nil {
		return err
	}
	if err := m.RegisterHandler(YAMLDocumentTag, YAMLDocumentType, YAML[Document]()); err != nil {
		return err
	}
	if _, err := asset.Register[*Blob](m, BlobType, Bytes()); err != nil {
		return err
	}
	if _, err := asset.Register[*WITPackage](m, WITPackageType, WIT()); err != nil {
		return err
	}
	if rt != nil {
		if _, err := asset.Register[*Module](m, WasmModuleType, WasmModule(rt)); err != nil {
			return err
		}
	}
	return nil
}
