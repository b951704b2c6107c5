package source

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

type mount struct {
	fsys     fs.FS
	name     string
	priority int
}

// FS is a layered, read-only asset source.
type FS struct {
	mounts []mount
	mu     sync.RWMutex
}

// New creates an FS with no mounts.
func New() *FS {
	return &FS{}
}

// Mount adds fsys at the given priority. Lower priorities are searched first;
// mounts with equal priority keep their insertion order.
func (s *FS) Mount(fsys fs.FS, priority int) {
	s.MountNamed("", fsys, priority)
}

// MountNamed is Mount with a name used in logs and errors.
func (s *FS) MountNamed(name string, fsys fs.FS, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// readers hold snapshots of the slice, so never sort it in place
	next := append(slices.Clone(s.mounts), mount{fsys: fsys, name: name, priority: priority})
	slices.SortStableFunc(next, func(a, b mount) int {
		return a.priority - b.priority
	})
	s.mounts = next
}

// Len returns the number of mounts.
func (s *FS) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mounts)
}

// Clean converts p to the slash-separated, unrooted form fs.FS expects.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// ReadFile returns the contents of name from the first mount that has it.
func (s *FS) ReadFile(name string) ([]byte, error) {
	p := Clean(name)
	if p == "" || !fs.ValidPath(p) {
		return nil, errors.InvalidInput(errors.PhaseLoad, "invalid source path "+name)
	}

	s.mu.RLock()
	mounts := s.mounts
	s.mu.RUnlock()

	for _, m := range mounts {
		data, err := fs.ReadFile(m.fsys, p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(errors.PhaseLoad, errors.KindLoadFailed).
				Path(p).
				Cause(err).
				Detail("read from mount %q", m.name).
				Build()
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "source file", p)
}

// Open implements fs.FS over the stacked mounts.
func (s *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	s.mu.RLock()
	mounts := s.mounts
	s.mu.RUnlock()

	for _, m := range mounts {
		f, err := m.fsys.Open(name)
		if err == nil {
			return f, nil
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat reports whether name exists in any mount.
func (s *FS) Stat(name string) (fs.FileInfo, error) {
	p := Clean(name)
	if p == "" {
		p = "."
	}
	if !fs.ValidPath(p) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	s.mu.RLock()
	mounts := s.mounts
	s.mu.RUnlock()

	for _, m := range mounts {
		if fi, err := fs.Stat(m.fsys, p); err == nil {
			return fi, nil
		}
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadAsset implements asset.Source using the catalog path of the asset.
func (s *FS) ReadAsset(ctx context.Context, info asset.AssetInfo) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ReadFile(info.Path)
}

// Walk calls fn for every file path visible through the mounts, once per
// path, in mount order.
func (s *FS) Walk(fn func(p string) error) error {
	s.mu.RLock()
	mounts := s.mounts
	s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, m := range mounts {
		err := fs.WalkDir(m.fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || seen[p] {
				return err
			}
			seen[p] = true
			return fn(p)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
