// Package async provides safe concurrent execution primitives for
// background tasks.
//
// SafeGo runs a function in a goroutine with panic recovery and a
// per-task timeout; use it instead of a bare `go func()` for
// fire-and-forget work like cache invalidation:
//
//	async.SafeGo(ctx, 5*time.Second, "cache invalidation", func(ctx context.Context) error {
//		return cache.InvalidateMother(ctx, motherID)
//	})
//
// WorkerPool manages a bounded set of workers draining a task channel,
// with graceful shutdown and error collection. Batch processes a slice
// concurrently on top of it:
//
//	errs := async.Batch(ctx, days, 3, "mail backfill", time.Minute,
//		func(ctx context.Context, day time.Time) error {
//			return ingestor.IngestDay(ctx, source, day)
//		})
package async
