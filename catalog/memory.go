package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

// Memory is an in-process catalog.
type Memory struct {
	byID   map[asset.AssetID]asset.AssetInfo
	byPath map[string]asset.AssetID
	mu     sync.RWMutex
}

// NewMemory creates an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[asset.AssetID]asset.AssetInfo),
		byPath: make(map[string]asset.AssetID),
	}
}

// Register adds or replaces an entry. A path already owned by another id is rejected.
func (m *Memory) Register(info asset.AssetInfo) error {
	if !info.ID.IsValid() {
		return errors.InvalidInput(errors.PhaseCatalog, "asset id is null")
	}
	if info.Path == "" {
		return errors.InvalidInput(errors.PhaseCatalog, "asset "+info.ID.String()+" has no path")
	}
	info.Path = CleanPath(info.Path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.byPath[info.Path]; ok && owner != info.ID {
		return errors.New(errors.PhaseCatalog, errors.KindInvalidInput).
			Asset(info.ID.String()).
			Path(info.Path).
			Detail("path already registered to %s", owner).
			Build()
	}
	if prev, ok := m.byID[info.ID]; ok {
		delete(m.byPath, prev.Path)
	}
	m.byID[info.ID] = info
	m.byPath[info.Path] = info.ID
	return nil
}

// Remove deletes the entry for id.
func (m *Memory) Remove(id asset.AssetID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byID, id)
	delete(m.byPath, info.Path)
	return true
}

// AssetInfo implements asset.Catalog.
func (m *Memory) AssetInfo(ctx context.Context, id asset.AssetID) (asset.AssetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.byID[id]
	if !ok {
		return asset.AssetInfo{}, errors.NotFound(errors.PhaseCatalog, "asset", id.String())
	}
	return info, nil
}

// AssetID implements asset.Catalog.
func (m *Memory) AssetID(ctx context.Context, p string) (asset.AssetID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPath[CleanPath(p)]
	if !ok {
		return asset.AssetID{}, errors.NotFound(errors.PhaseCatalog, "path", p)
	}
	return id, nil
}

// List returns every entry ordered by path.
func (m *Memory) List() []asset.AssetInfo {
	m.mu.RLock()
	out := make([]asset.AssetInfo, 0, len(m.byID))
	for _, info := range m.byID {
		out = append(out, info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
