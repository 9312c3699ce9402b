// Package middleware hides the message bus behind a small Connection
// interface. Drivers are selected by the mw-id configuration value:
//
//	loopback  in-process bus, the default
//	nats      NATS through natsclient
//	mqtt      MQTT 3.1.1 through Eclipse Paho
//
// Subjects use GMSEC dotted form with NATS-style wildcards: "*" matches one
// token and ">" matches one or more trailing tokens. Drivers translate to
// their native syntax.
package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

// Handler receives the subject and payload of a delivered message
type Handler func(ctx context.Context, subject string, payload []byte)

// Subscription is an active subscription
type Subscription interface {
	Subject() string
	Unsubscribe() error
}

// Connection is a middleware connection
type Connection interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, subject string, payload []byte) error
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)
	Close(ctx context.Context) error

	// Library names the driver and its underlying library
	Library() string
}

// Driver identifiers accepted for mw-id
const (
	Loopback = "loopback"
	NATS     = "nats"
	MQTT     = "mqtt"
)

// Option configures driver construction
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	bus      *Bus
}

// WithLogger sets the driver logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports driver connection metrics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) { o.registry = registry }
}

// WithBus attaches loopback connections to bus instead of the process bus
func WithBus(bus *Bus) Option {
	return func(o *options) { o.bus = bus }
}

// New builds the driver named by cfg's mw-id. The connection is not yet
// connected.
func New(cfg *config.Config, opts ...Option) (Connection, error) {
	if cfg == nil {
		cfg = config.New()
	}
	id := strings.ToLower(cfg.Value(config.KeyMiddlewareID, Loopback))

	o := &options{logger: slog.Default().With("component", "middleware", "mw-id", id)}
	for _, opt := range opts {
		opt(o)
	}

	switch id {
	case Loopback:
		bus := o.bus
		if bus == nil {
			bus = DefaultBus()
		}
		return NewLoopback(bus), nil
	case NATS:
		return newNATS(cfg, o)
	case MQTT:
		return newMQTT(cfg, o)
	default:
		return nil, errors.WrapInvalid(
			errors.Newf(errors.ErrUnknownMiddleware, "unsupported mw-id %q", id),
			"middleware", "New", "select driver")
	}
}

// Match reports whether subject matches pattern. Both are dotted; the
// pattern may use "*" and a trailing ">".
func Match(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// ValidSubject checks a publish subject: non-empty tokens, no wildcards
func ValidSubject(subject string) error {
	if subject == "" {
		return errors.Newf(errors.ErrInvalidData, "subject is empty")
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "" || tok == "*" || tok == ">" {
			return errors.Newf(errors.ErrInvalidData, "invalid subject %q", subject)
		}
	}
	return nil
}

// ValidPattern checks a subscription pattern
func ValidPattern(pattern string) error {
	if pattern == "" {
		return errors.Newf(errors.ErrInvalidData, "subscription subject is empty")
	}
	toks := strings.Split(pattern, ".")
	for i, tok := range toks {
		if tok == "" || (tok == ">" && i != len(toks)-1) {
			return errors.Newf(errors.ErrInvalidData, "invalid subscription subject %q", pattern)
		}
	}
	return nil
}
