// Package jobs provides schedulers for asset load jobs.
//
// Pool runs jobs concurrently with a bounded number of active slots. Submit
// never blocks the caller; excess jobs wait for a slot on their own
// goroutine.
//
//	p := jobs.NewPool(4)
//	p.Submit(func(ctx context.Context) { ... })
//	p.Close()
//	p.Wait()
//
// Manual runs nothing until told to, which makes completion order fully
// controllable in tests.
package jobs
