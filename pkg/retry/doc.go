// Package retry runs an operation with exponential backoff.
//
// The connection manager uses it to connect to the middleware:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return conn.Connect(ctx)
//	})
//
// Only transient failures are retried by default. Errors classified as
// invalid or fatal by the errors package, and errors wrapped with
// NonRetryable, end the loop immediately. Set Config.RetryIf to change the
// policy.
//
// Backoff sleeps honour context cancellation. Jitter of up to 25% of the
// current delay is added when Config.AddJitter is set.
package retry
