// Package catalog holds model metadata: which adapter serves a model, its
// context window and its per-token pricing.
//
// A Catalog is an ordinary value. Build one with New or NewDefault and pass
// the same pointer to every component that needs it:
//
//	cat := catalog.NewDefault()
//	if _, err := cat.LoadFile("models.yaml"); err != nil {
//	    return err
//	}
//
//	cost, ok := cat.EstimateCost("gpt-4o", 1000, 500)
//	if !ok {
//	    // pricing unavailable
//	}
//
// Costs are USD: input/1000*CostPer1kInput + output/1000*CostPer1kOutput.
// FitsInContext is strict: a request must be smaller than the context window.
//
// # Hot Reload
//
// A Watcher re-applies a catalog file when it is written. Reloads only add or
// overwrite entries; removing a model from the file does not unregister it.
package catalog
