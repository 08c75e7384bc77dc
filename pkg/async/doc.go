// Package async provides safe concurrent execution primitives for background work.
//
// SafeGo runs a function in a goroutine with a timeout and panic recovery:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "cache purge", func(ctx context.Context) error {
//		return catalog.Purge(ctx)
//	})
//
// WorkerPool is a bounded queue drained by a fixed number of workers. It backs
// the asynchronous event sink:
//
//	pool := async.NewWorkerPool(ctx, async.PoolConfig{Name: "sink", Workers: 4, QueueSize: 1024})
//	if err := pool.TrySubmit(task); errors.Is(err, async.ErrQueueFull) {
//		// shed load
//	}
//	defer pool.Shutdown(shutdownCtx)
package async
