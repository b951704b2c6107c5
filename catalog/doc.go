// Package catalog maps asset ids to source paths and back.
//
// Three implementations are provided, all satisfying asset.Catalog:
//
//	Memory   - an in-process table, filled by Register
//	Manifest - a Memory loaded from a YAML manifest file
//	SQLite   - a persistent table in a SQLite database
//
// Paths are stored in slash-separated, cleaned form so that lookups by path
// do not depend on how the caller spelled them.
//
// A manifest looks like:
//
//	assets:
//	  - id: "{6B1E5A0C-2F4D-4E8A-9C3B-1D7F0E2A5B64}:0"
//	    type: MeshAsset
//	    path: meshes/box.json
//	    watch_folder: assets
package catalog

import (
	"path"
	"strings"
)

// CleanPath returns the canonical catalog form of p.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean(p)
}
