package middleware

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/natsclient"
	"github.com/nasa/GMSEC-API-sub012/pkg/tlsutil"
)

// Keys of the optional JetStream stream
const (
	KeyNATSStream         = "mw-nats-stream"
	KeyNATSStreamSubjects = "mw-nats-stream-subjects"

	defaultStreamSubjects = "C2MS.>,GMSEC.>"
)

// NATSConnection adapts natsclient.Client. GMSEC subjects and wildcards
// are native NATS syntax.
//
// When mw-nats-stream names a stream, Connect creates it over the subjects
// in mw-nats-stream-subjects and publishes on those subjects wait for the
// stream to store the message. Subscribers are unaffected.
type NATSConnection struct {
	client *natsclient.Client
	stream jetstream.StreamConfig
}

type natsSub struct {
	sub *nats.Subscription
}

func (s natsSub) Subject() string    { return s.sub.Subject }
func (s natsSub) Unsubscribe() error { return s.sub.Unsubscribe() }

func newNATS(cfg *config.Config, o *options) (*NATSConnection, error) {
	url := cfg.Value(config.KeyMiddlewareServer, nats.DefaultURL)

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(o.logger),
		natsclient.WithMetrics(o.registry),
	}
	if name := cfg.Value(config.KeyClientName, ""); name != "" {
		opts = append(opts, natsclient.WithName(name))
	}
	if user := cfg.Value(config.KeyMiddlewareUsername, ""); user != "" {
		opts = append(opts, natsclient.WithCredentials(user, cfg.Value(config.KeyMiddlewarePassword, "")))
	}

	tlsConfig, err := tlsutil.FromConfigTLS(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "middleware", "newNATS", "load TLS configuration")
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLSConfig(tlsConfig))
	}

	client, err := natsclient.NewClient(url, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "middleware", "newNATS", "create client")
	}

	c := &NATSConnection{client: client}
	if name := cfg.Value(KeyNATSStream, ""); name != "" {
		c.stream = jetstream.StreamConfig{Name: name}
		for _, subject := range strings.Split(cfg.Value(KeyNATSStreamSubjects, defaultStreamSubjects), ",") {
			subject = strings.TrimSpace(subject)
			if err := ValidPattern(subject); err != nil {
				return nil, errors.WrapInvalid(err, "middleware", "newNATS", "read "+KeyNATSStreamSubjects)
			}
			c.stream.Subjects = append(c.stream.Subjects, subject)
		}
	}
	return c, nil
}

// NewNATS wraps an existing client
func NewNATS(client *natsclient.Client) *NATSConnection {
	return &NATSConnection{client: client}
}

// Connect dials the server and sets up the stream, if any
func (c *NATSConnection) Connect(ctx context.Context) error {
	if err := c.client.Connect(ctx); err != nil {
		return err
	}
	if c.stream.Name == "" {
		return nil
	}
	if _, err := c.client.EnsureStream(ctx, c.stream); err != nil {
		return errors.Wrap(err, "NATSConnection", "Connect", "set up stream")
	}
	return nil
}

func (c *NATSConnection) persistent(subject string) bool {
	for _, pattern := range c.stream.Subjects {
		if Match(pattern, subject) {
			return true
		}
	}
	return false
}

// Publish sends payload on subject
func (c *NATSConnection) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ValidSubject(subject); err != nil {
		return errors.WrapInvalid(err, "NATSConnection", "Publish", "check subject")
	}
	if c.persistent(subject) {
		return c.client.PublishPersistent(ctx, subject, payload)
	}
	return c.client.Publish(ctx, subject, payload)
}

// Subscribe registers handler for pattern
func (c *NATSConnection) Subscribe(ctx context.Context, pattern string, handler Handler) (Subscription, error) {
	if err := ValidPattern(pattern); err != nil {
		return nil, errors.WrapInvalid(err, "NATSConnection", "Subscribe", "check subject")
	}
	sub, err := c.client.Subscribe(ctx, pattern, func(ctx context.Context, subject string, data []byte) {
		handler(ctx, subject, data)
	})
	if err != nil {
		return nil, err
	}
	return natsSub{sub: sub}, nil
}

// Close drains and closes the client
func (c *NATSConnection) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// Library identifies the driver
func (c *NATSConnection) Library() string { return "nats.go " + nats.Version }
