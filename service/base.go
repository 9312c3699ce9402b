package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/health"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

const (
	// DefaultPollInterval is how often the publish loop wakes up
	DefaultPollInterval = 250 * time.Millisecond

	teardownTimeout = 5 * time.Second
)

// Option configures a service
type Option func(*options)

type options struct {
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	poll      time.Duration
	collector ResourceCollector
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports lifecycle state and publish failures
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithPollInterval sets the publish loop tick. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithCollector sets the resource collector of a ResourceService
func WithCollector(c ResourceCollector) Option {
	return func(o *options) {
		if c != nil {
			o.collector = c
		}
	}
}

func applyOptions(name string, opts []Option) *options {
	o := &options{
		logger: slog.Default().With("service", name),
		poll:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// base is the lifecycle shared by the heartbeat and resource services:
// setup, the running flag, the start and stop latches and teardown.
type base struct {
	name    string
	factory PublisherFactory
	logger  *slog.Logger
	metrics *metric.Metrics
	poll    time.Duration

	lc       *lifecycle
	running  atomic.Bool
	started  *Latch
	stopped  *Latch
	stopOnce sync.Once
	stopCh   chan struct{}
	tearOnce sync.Once

	startTime   atomic.Value // time.Time
	lastPublish atomic.Value // time.Time
	lastErr     atomic.Value // string
	published   atomic.Int64
	failures    atomic.Int64
}

func newBase(name string, factory PublisherFactory, o *options) *base {
	b := &base{
		name:    name,
		factory: factory,
		logger:  o.logger,
		poll:    o.poll,
		started: NewLatch(),
		stopped: NewLatch(),
		stopCh:  make(chan struct{}),
	}
	if o.registry != nil {
		b.metrics = o.registry.CoreMetrics()
	}
	b.startTime.Store(time.Time{})
	b.lastPublish.Store(time.Time{})
	b.lastErr.Store("")

	b.lc = newLifecycle(func(s State) {
		b.logger.Debug("Service state changed", "state", string(s))
		if b.metrics != nil {
			b.metrics.RecordServiceStatus(b.name, s.Ordinal())
		}
	})
	if b.metrics != nil {
		b.metrics.RecordServiceStatus(b.name, StateCreated.Ordinal())
	}
	return b
}

// run drives one lifetime. It returns after loop returns and teardown has
// completed, or as soon as setup fails. A failed setup never releases the
// start latch.
func (b *base) run(ctx context.Context, loop func(context.Context, Publisher)) error {
	if err := b.lc.fire(ctx, eventSetup); err != nil {
		return errors.WrapInvalid(
			errors.Newf(errors.ErrAlreadyStarted, "%s service is %s", b.name, b.lc.current()),
			b.name, "Start", "begin setup")
	}

	pub, err := b.setup(ctx)
	if err != nil {
		b.logger.Error("Service setup failed", "error", err)
		b.lastErr.Store(err.Error())
		b.teardown(ctx, pub)
		return err
	}
	if err := ctx.Err(); err != nil {
		b.logger.Warn("Service cancelled during setup", "error", err)
		b.lastErr.Store(err.Error())
		b.teardown(ctx, pub)
		return errors.WrapTransient(err, b.name, "Start", "finish setup")
	}

	if err := b.lc.fire(ctx, eventRun); err != nil {
		b.teardown(ctx, pub)
		return errors.WrapFatal(err, b.name, "Start", "enter running state")
	}
	b.startTime.Store(time.Now())
	b.running.Store(true)
	b.started.Release()
	b.logger.Info("Service started")

	loop(ctx, pub)

	b.running.Store(false)
	b.teardown(ctx, pub)
	b.logger.Info("Service stopped", "published", b.published.Load(), "failures", b.failures.Load())
	return nil
}

func (b *base) setup(ctx context.Context) (Publisher, error) {
	if b.factory == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, b.name, "setup", "create publisher")
	}
	pub, err := b.factory()
	if err != nil {
		return nil, errors.Wrap(err, b.name, "setup", "create publisher")
	}
	if err := pub.Initialize(ctx); err != nil {
		return pub, errors.Wrap(err, b.name, "setup", "initialize publisher")
	}
	return pub, nil
}

// teardown releases the publisher and finishes the lifecycle. It runs at
// most once and ignores cancellation of ctx.
func (b *base) teardown(ctx context.Context, pub Publisher) {
	b.tearOnce.Do(func() {
		_ = b.lc.fire(ctx, eventTeardown)

		if pub != nil {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
			if err := pub.Cleanup(cleanupCtx); err != nil {
				b.logger.Warn("Publisher cleanup failed", "error", err)
			}
			cancel()
		}

		_ = b.lc.fire(ctx, eventFinish)
		b.stopped.Release()
	})
}

// wait blocks for one poll tick and reports whether the loop should go on
func (b *base) wait(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return false
	case <-b.stopCh:
		return false
	case <-ticker.C:
		return b.running.Load()
	}
}

func (b *base) publish(ctx context.Context, pub Publisher, msg *message.Message) {
	if err := pub.Publish(ctx, msg); err != nil {
		b.failures.Add(1)
		b.lastErr.Store(err.Error())
		b.logger.Warn("Publish failed, retrying next interval", "subject", msg.Subject(), "error", err)
		if b.metrics != nil {
			b.metrics.RecordPublishError(b.name)
		}
		return
	}
	b.published.Add(1)
	b.lastPublish.Store(time.Now())
	b.lastErr.Store("")
}

// AwaitStart blocks until setup has completed or timeout elapses
func (b *base) AwaitStart(timeout time.Duration) bool {
	return b.started.Await(timeout)
}

// Started is closed once setup has completed
func (b *base) Started() <-chan struct{} {
	return b.started.Done()
}

// Stop asks the publish loop to exit and waits up to timeout for teardown.
// On a service that is not running it logs a warning and returns false
// without waiting.
func (b *base) Stop(timeout time.Duration) bool {
	if !b.running.CompareAndSwap(true, false) {
		b.logger.Warn("Stop requested but service is not running", "state", string(b.lc.current()))
		return false
	}
	b.stopOnce.Do(func() { close(b.stopCh) })
	return b.stopped.Await(timeout)
}

// Running reports whether the publish loop is active
func (b *base) Running() bool {
	return b.running.Load()
}

// State returns the lifecycle state
func (b *base) State() State {
	return b.lc.current()
}

// Published returns the number of successful publishes
func (b *base) Published() int64 {
	return b.published.Load()
}

// Health reports running services as healthy, or degraded after a failed
// publish that has not been followed by a successful one.
func (b *base) Health() health.Status {
	var status health.Status
	lastErr, _ := b.lastErr.Load().(string)
	switch {
	case b.running.Load() && lastErr != "":
		status = health.NewDegraded(b.name, lastErr)
	case b.running.Load():
		status = health.NewHealthy(b.name, "publishing")
	case lastErr != "":
		status = health.NewUnhealthy(b.name, fmt.Sprintf("%s: %s", b.lc.current(), lastErr))
	default:
		status = health.NewUnhealthy(b.name, "service is "+string(b.lc.current()))
	}

	var uptime time.Duration
	if started, _ := b.startTime.Load().(time.Time); !started.IsZero() && b.running.Load() {
		uptime = time.Since(started)
	}
	last, _ := b.lastPublish.Load().(time.Time)
	return status.WithMetrics(&health.Metrics{
		Uptime:            uptime,
		ErrorCount:        int(b.failures.Load()),
		MessagesPublished: b.published.Load(),
		LastPublish:       last,
	})
}

// nextCounter returns f incremented by one, wrapping to 1 once the
// maximum of its integer type is reached.
func nextCounter(f *message.Field) (*message.Field, error) {
	maxVal, ok := f.Type().MaxInteger()
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidType, "counter %s has non-integer type %s", f.Name(), f.Type())
	}

	var current uint64
	if f.Type().IsSigned() {
		v, err := f.I64Value()
		if err != nil {
			return nil, err
		}
		if v > 0 {
			current = uint64(v)
		}
	} else {
		v, err := f.U64Value()
		if err != nil {
			return nil, err
		}
		current = v
	}

	next := current + 1
	if current >= maxVal {
		next = 1
	}
	return message.NewFieldFromString(f.Name(), f.Type(), strconv.FormatUint(next, 10))
}

// rateInterval reads a PUB-RATE field as a number of seconds
func rateInterval(f *message.Field) time.Duration {
	seconds, err := f.I64Value()
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
