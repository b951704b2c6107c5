// Package assetruntime is a reference-counted asset cache with asynchronous
// loading and owner-thread event dispatch.
//
// Callers ask for an asset by id and immediately get a handle. Loading runs
// on a worker pool; results are applied, and callbacks run, only when the
// owner calls DispatchEvents. Records live while handles reference them and
// are evicted once the last handle is released.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	assetruntime/        Root package (documentation only)
//	├── asset/           Ids, records, handles, the cache, loader and Manager facade
//	├── jobs/            Bounded worker pool and a manual scheduler for tests
//	├── catalog/         Id to path catalogs: in-memory, YAML manifest, SQLite
//	├── source/          Layered fs.FS source of asset bytes
//	├── codec/           Handlers for JSON, YAML, blobs, wasm modules and WIT packages
//	├── scenecache/      Weak, path-keyed scene document cache
//	├── config/          YAML configuration and the settings registry
//	├── errors/          Structured error types for debugging
//	└── cmd/assetctl/    Batch loader and interactive inspector
//
// # Quick Start
//
//	m, err := asset.Create(asset.Descriptor{Catalog: cat, Source: src})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Destroy()
//
//	meshType, _ := asset.Register[*Mesh](m, "Mesh", codec.JSON[Mesh]())
//
//	mesh, err := asset.Get[*Mesh](m, id, asset.QueueLoad)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mesh.Release()
//
//	// once per frame on the owner goroutine
//	m.DispatchEvents()
//	if mesh.IsReady() {
//	    v, _ := mesh.Get()
//	    draw(v)
//	}
//
// # Load Behaviors
//
// Assets referenced from another asset's payload declare how they load:
//
//   - QueueLoad: the dependency loads independently; the parent does not wait
//   - PreLoad: the dependency is Ready before the parent completes
//   - NoLoad: the dependency is referenced but never loaded implicitly
//
// # Thread Safety
//
// Manager and Handle methods may be called from any goroutine. Status
// changes, payload swaps and callbacks happen only inside DispatchEvents,
// so code running on the owner goroutine sees a stable view between pumps.
// A payload returned by Get is shared by every holder and must be treated
// as read-only; use asset.Edit to publish a modified copy.
package assetruntime
