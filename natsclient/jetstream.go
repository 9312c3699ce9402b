package natsclient

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// JetStream returns the JetStream context of the current connection
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.js == nil {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "JetStream", "get JetStream context")
	}
	return c.js, nil
}

// EnsureStream creates the stream described by cfg, or updates it to
// match cfg when it already exists.
func (c *Client) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, errors.WrapTransient(ErrCircuitOpen, "Client", "EnsureStream", "check circuit breaker")
	}

	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	stream, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		c.recordError("ensure_stream")
		return nil, errors.WrapTransient(err, "Client", "EnsureStream", "create stream "+cfg.Name)
	}
	c.logger.Info("JetStream stream ready", "stream", cfg.Name, "subjects", cfg.Subjects)
	return stream, nil
}

// PublishPersistent publishes data through JetStream and waits for the
// server to acknowledge that a stream stored it.
func (c *Client) PublishPersistent(ctx context.Context, subject string, data []byte) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if _, err := js.Publish(ctx, subject, data); err != nil {
		c.recordError("publish_persistent")
		return errors.WrapTransient(err, "Client", "PublishPersistent", "publish "+subject)
	}
	return nil
}

func (c *Client) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError("natsclient", kind)
	}
}
