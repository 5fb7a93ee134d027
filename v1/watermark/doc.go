// Package watermark records which collection pairs have been migrated.
//
// A migration calls Begin before copying, then Complete or Fail. Begin refuses to
// start a pair that already completed, so repeated invocations copy data at most
// once. A running or failed marker is replaced, which restarts the copy from the
// beginning.
//
// Two backends are available: SQLiteStore for single-host use and PostgresStore,
// built on the postgres package, for shared deployments.
//
//	store, err := watermark.Open(ctx, watermark.DefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if _, err := store.Begin(ctx, "Movies", "MoviesCopy", runID); watermark.IsAlreadyCompleted(err) {
//	    return nil
//	}
package watermark
