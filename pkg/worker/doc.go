// Package worker provides a bounded pool of goroutines that process queued
// work items. The connection manager uses it to dispatch subscription
// callbacks off the middleware's delivery goroutine.
//
//	pool, err := worker.NewPool(4, 256, func(ctx context.Context, d delivery) error {
//		d.callback(ctx, d.msg)
//		return nil
//	})
//	if err != nil {
//		return err
//	}
//	if err := pool.Start(ctx); err != nil {
//		return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Submit never blocks: a full queue drops the item and returns
// ErrQueueFull. A panic in the processor is recovered and counted as a
// failure. Stop lets the workers drain the queue before it returns.
package worker
