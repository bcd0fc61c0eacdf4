// Package usage is a ledger of the completions and streams routed through the
// dispatcher: tokens, estimated cost, latency and outcome per call.
//
// Two stores implement Store: MemoryStore, bounded and process-local, and
// SQLiteStore, backed by the pure Go modernc.org/sqlite driver.
//
//	store, err := usage.NewStore(cfg.Usage)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	summary, err := store.Summary(ctx, time.Now().Add(-24*time.Hour))
//
// Records without catalog pricing keep a nil CostUSD and are counted as
// Unpriced in summaries rather than as zero-cost calls.
//
// A Pruner removes records past the retention period on a cron schedule.
package usage
