// Package source reads asset bytes from a stack of file systems.
//
// Mounts are searched in ascending priority order; the first mount that
// contains the path wins. This lets a project overlay override files of
// the engine's base content:
//
//	src := source.New()
//	src.Mount(os.DirFS("project/assets"), 0)
//	src.Mount(os.DirFS("engine/assets"), 10)
//
// FS implements asset.Source and fs.FS.
package source
