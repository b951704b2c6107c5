// Package asset provides reference-counted asset handles, the record cache
// behind them, and the asynchronous loader that fills it.
//
// # Lifecycle
//
// A Manager is created explicitly and destroyed explicitly:
//
//	m, err := asset.Create(asset.Descriptor{Source: src, Catalog: cat})
//	defer m.Destroy()
//
//	meshType, _ := asset.Register[*Mesh](m, "Mesh", codec.JSON[Mesh]())
//
// Handles are obtained from the manager and must be released:
//
//	mesh, err := asset.Get[*Mesh](m, id, asset.QueueLoad)
//	defer mesh.Release()
//
// CreateAs and Find return typed handles without submitting a load.
//
// # The Pump
//
// Loads run on worker goroutines, but their results only become visible when
// the owner calls DispatchEvents, once per tick:
//
//	for running {
//	    m.DispatchEvents()
//	    if mesh.IsReady() {
//	        v, _ := mesh.Get()
//	        draw(v)
//	    }
//	}
//
// Between two DispatchEvents calls the status of every record is stable.
// Callbacks registered with OnReady, OnError and OnChange, and observers
// added with Subscribe, run only inside DispatchEvents.
//
// # Record States
//
//	NotLoaded --submit--> Queued --worker begins--> Loading --ok--> Ready
//	                                               Loading --err--> Error
//	Ready|Error --ReloadAsset--> Queued
//
// Every submission gets a new generation; results of older generations are
// discarded by the pump.
//
// # Eviction
//
// A record whose last handle is released while NotLoaded or Error is
// evicted at once. Other unreferenced records are evicted at the start of
// the next DispatchEvents, unless a handle was acquired again in between.
// SuspendRelease holds off all eviction.
//
// # Nested Loads
//
// Handlers take references to other assets through the LoadContext. PreLoad
// dependencies are loaded before the parent completes, QueueLoad ones are
// submitted independently, and NoLoad ones are only referenced. A PreLoad
// chain that revisits an asset fails with a cyclic load error.
package asset
