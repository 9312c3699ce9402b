// Package natsclient manages a single NATS connection for the NATS
// middleware driver.
//
// The client tracks its connection status, reconnects through the NATS
// library, and guards Connect with a circuit breaker: after a configurable
// number of consecutive connect failures, further attempts fail fast with
// ErrCircuitOpen until an exponentially growing backoff has passed.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("mist-heartbeat"),
//		natsclient.WithMetrics(registry))
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
// Subscribe delivers the subject and payload of each message to a handler.
// Close unsubscribes, drains the connection and clears stored credentials.
//
// TestServer starts a disposable NATS container through testcontainers for
// integration tests.
package natsclient
