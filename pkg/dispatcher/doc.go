// Package dispatcher routes completion and stream calls to the adapter that
// serves them.
//
// A Dispatcher holds at most one adapter per provider kind. A call is routed
// by, in order: the explicit CompletionOptions.Provider, the catalog entry
// for CompletionOptions.Model, a guess from the model id's prefix, and the
// default kind. Calls are forwarded unchanged and adapter errors are returned
// unchanged; when the resolved kind has no adapter the call fails with a
// *providers.NoProviderError.
//
// Every forwarded call is observed: request and stream metrics, a retry
// counter fed by the adapter's retry hook, a catalog cost estimate and, when
// a usage store is configured, one usage.Record.
//
//	d, err := dispatcher.NewFromConfig(cfg, dispatcher.Config{
//	    Catalog: cat,
//	    Metrics: collector,
//	    Usage:   store,
//	})
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	resp, err := d.Complete(ctx, msgs, providers.CompletionOptions{Model: "claude-3-5-haiku-20241022"})
package dispatcher
