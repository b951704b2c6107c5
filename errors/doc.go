// Package errors provides structured error types for the asset runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the asset id, the asset type name, a source path, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLookup, errors.KindTypeMismatch).
//		Asset(id.String()).
//		Type("MeshAsset").
//		Detail("record registered as %s", other).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotReady(id.String(), "Queued")
//	err := errors.UnsupportedFormat(path, ".fbx")
//
// All errors implement the standard error interface and support errors.Is/As.
// The package-level sentinels match any phase:
//
//	if errors.Is(err, errors.ErrNotReady) {
//	    // poll again after the next pump
//	}
package errors
