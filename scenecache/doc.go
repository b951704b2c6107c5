// Package scenecache deduplicates scene document parses by file path.
//
// The cache holds only weak references. A Document stays cached exactly as
// long as some caller keeps it alive; once the last strong reference is
// dropped the garbage collector may reclaim it and the next LoadOrGet for
// that path parses the file again.
//
//	cache, _ := scenecache.New(scenecache.Config{Settings: cfg, Catalog: cat})
//	doc, err := cache.LoadOrGet(ctx, "levels/intro.scene", asset.AssetID{})
//
// Paths are resolved against the EngineRootFolder setting and canonicalized
// before lookup, so "levels/../levels/intro.scene", "levels\\intro.scene" and
// the absolute form all share one entry.
//
// Pruning and lookup are not atomic: the last holder may drop a document
// between the two. A lookup that finds an expired entry is treated as a miss.
// Concurrent misses for one path share a single parse.
package scenecache
