package connmgr

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/health"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/metric"
	"github.com/nasa/GMSEC-API-sub012/middleware"
	"github.com/nasa/GMSEC-API-sub012/mist"
	"github.com/nasa/GMSEC-API-sub012/pkg/retry"
	"github.com/nasa/GMSEC-API-sub012/pkg/timestamp"
	"github.com/nasa/GMSEC-API-sub012/pkg/worker"
	"github.com/nasa/GMSEC-API-sub012/service"
)

// Header fields filled in on every outgoing message
const (
	FieldPublishTime = "PUBLISH-TIME"
	FieldUniqueID    = "UNIQUE-ID"
	FieldMWInfo      = "MW-INFO"

	defaultStartTimeout = 10 * time.Second
	stopTimeout         = 10 * time.Second
)

// Callback receives decoded messages from Subscribe
type Callback func(ctx context.Context, msg *message.Message)

type delivery struct {
	cb  Callback
	msg *message.Message
}

// ConnectionManager publishes and subscribes GMSEC messages over one
// middleware connection.
type ConnectionManager struct {
	id      string
	cfg     *config.Config
	spec    *mist.Specification
	conn    middleware.Connection
	factory ConnectionFactory

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
	monitor  *health.Monitor

	validateSend bool
	validateRecv bool
	retry        retry.Config
	startTimeout time.Duration
	poll         time.Duration
	dispatcher   *worker.Pool[delivery]
	limiter      *rate.Limiter

	initialized atomic.Bool
	closed      atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.RWMutex
	standard []*message.Field
	subs     []middleware.Subscription

	dropping atomic.Bool

	svcMu     sync.Mutex
	heartbeat *service.HeartbeatService
	hbCancel  context.CancelFunc
	resource  *service.ResourceService
	rsCancel  context.CancelFunc
}

// New builds a ConnectionManager from cfg. The Specification is loaded
// from cfg unless WithSpecification is given, and the middleware driver is
// chosen by mw-id. Nothing is connected until Initialize.
func New(cfg *config.Config, opts ...Option) (*ConnectionManager, error) {
	if cfg == nil {
		cfg = config.New()
	}

	o := &options{
		logger:       slog.Default().With("component", "connmgr"),
		retry:        retry.Quick(),
		startTimeout: defaultStartTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	so, err := cfg.SpecificationOptions()
	if err != nil {
		return nil, errors.WrapInvalid(err, "ConnectionManager", "New", "read configuration")
	}

	spec := o.spec
	if spec == nil {
		spec, err = mist.New(cfg, mist.WithLogger(o.logger), mist.WithMetrics(o.registry))
		if err != nil {
			return nil, errors.Wrap(err, "ConnectionManager", "New", "load specification")
		}
	}

	factory := o.factory
	if factory == nil {
		factory = func() (middleware.Connection, error) {
			return middleware.New(cfg, middleware.WithLogger(o.logger), middleware.WithMetrics(o.registry))
		}
	}

	conn := o.conn
	if conn == nil {
		if conn, err = factory(); err != nil {
			return nil, errors.Wrap(err, "ConnectionManager", "New", "create connection")
		}
	}

	cm := &ConnectionManager{
		id:           uuid.NewString()[:8],
		cfg:          cfg,
		spec:         spec,
		conn:         conn,
		factory:      factory,
		logger:       o.logger,
		registry:     o.registry,
		validateSend: so.ValidateSend,
		validateRecv: so.ValidateRecv,
		retry:        o.retry,
		startTimeout: o.startTimeout,
		poll:         o.poll,
		limiter:      o.publishLimit,
	}
	if o.registry != nil {
		cm.metrics = o.registry.CoreMetrics()
	}
	if o.dispatch {
		cm.dispatcher, err = worker.NewPool(o.dispatchWorkers, o.dispatchQueue, dispatch,
			worker.WithLogger[delivery](o.logger),
			worker.WithMetrics[delivery](o.registry, "dispatch-"+cm.id))
		if err != nil {
			return nil, errors.Wrap(err, "ConnectionManager", "New", "create dispatch pool")
		}
	}
	cm.monitor = health.NewMonitor(cm.metrics)
	cm.monitor.UpdateUnhealthy("connection", "not initialized")
	return cm, nil
}

// Specification returns the shared specification
func (cm *ConnectionManager) Specification() *mist.Specification { return cm.spec }

// Config returns the configuration the manager was built from
func (cm *ConnectionManager) Config() *config.Config { return cm.cfg }

// Library names the middleware driver
func (cm *ConnectionManager) Library() string { return cm.conn.Library() }

// Initialize connects to the middleware, retrying transient failures
func (cm *ConnectionManager) Initialize(ctx context.Context) error {
	if cm.closed.Load() {
		return errors.WrapFatal(errors.ErrNotInitialized, "ConnectionManager", "Initialize", "manager was cleaned up")
	}
	if cm.initialized.Load() {
		return nil
	}

	err := retry.Do(ctx, cm.retry, func() error {
		return cm.conn.Connect(ctx)
	})
	if err != nil {
		cm.monitor.Update("connection", health.FromError("connection", err))
		return errors.Wrap(err, "ConnectionManager", "Initialize", "connect to middleware")
	}

	cm.ctx, cm.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if cm.dispatcher != nil {
		if err := cm.dispatcher.Start(cm.ctx); err != nil {
			return errors.WrapFatal(err, "ConnectionManager", "Initialize", "start dispatch pool")
		}
		cm.monitor.UpdateHealthy("dispatch", "queue accepting")
	}
	cm.initialized.Store(true)
	cm.monitor.UpdateHealthy("connection", cm.conn.Library())
	cm.logger.Info("Connection manager initialized",
		"library", cm.conn.Library(),
		"specification", cm.spec.Version(),
		"validate_send", cm.validateSend,
		"validate_recv", cm.validateRecv)
	return nil
}

func (cm *ConnectionManager) ready(method string) error {
	if !cm.initialized.Load() || cm.closed.Load() {
		return errors.WrapInvalid(errors.ErrNotInitialized, "ConnectionManager", method, "check connection")
	}
	return nil
}

// SetStandardFields replaces the fields added to every outgoing message
// and to the messages of hosted services.
func (cm *ConnectionManager) SetStandardFields(fields ...*message.Field) {
	copied := make([]*message.Field, 0, len(fields))
	for _, f := range fields {
		if f != nil {
			copied = append(copied, f.Copy())
		}
	}
	cm.mu.Lock()
	cm.standard = copied
	cm.mu.Unlock()
}

// StandardFields returns copies of the standard fields
func (cm *ConnectionManager) StandardFields() []*message.Field {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*message.Field, len(cm.standard))
	for i, f := range cm.standard {
		out[i] = f.Copy()
	}
	return out
}

// prepare returns the message as it goes on the wire: a copy of msg with
// the standard fields it lacks, a fresh PUBLISH-TIME and UNIQUE-ID, and
// MW-INFO.
func (cm *ConnectionManager) prepare(msg *message.Message) *message.Message {
	out := msg.Copy()
	for _, f := range cm.StandardFields() {
		if !out.HasField(f.Name()) {
			f.SetHeader(true)
			out.AddField(f)
		}
	}

	for _, f := range []*message.Field{
		message.NewStringField(FieldPublishTime, timestamp.Now()),
		message.NewStringField(FieldUniqueID, uuid.NewString()),
		message.NewStringField(FieldMWInfo, cm.conn.Library()),
	} {
		f.SetHeader(true)
		out.AddField(f)
	}
	return out
}

// Publish validates msg if configured and sends it on its subject. A
// validation failure is returned and nothing is sent.
func (cm *ConnectionManager) Publish(ctx context.Context, msg *message.Message) error {
	if err := cm.ready("Publish"); err != nil {
		return err
	}
	if msg == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "ConnectionManager", "Publish", "message is nil")
	}
	if cm.limiter != nil {
		if err := cm.limiter.Wait(ctx); err != nil {
			cm.recordPublishError("rate_limited")
			return errors.WrapTransient(err, "ConnectionManager", "Publish", "wait for publish slot")
		}
	}

	out := cm.prepare(msg)
	if cm.validateSend {
		if err := cm.spec.ValidateMessage(out); err != nil {
			cm.recordPublishError("validation")
			return errors.WrapInvalid(err, "ConnectionManager", "Publish", "validate "+out.Subject())
		}
	}

	payload, err := out.ToJSON()
	if err != nil {
		cm.recordPublishError("encode")
		return errors.WrapInvalid(err, "ConnectionManager", "Publish", "encode message")
	}
	if err := cm.conn.Publish(ctx, out.Subject(), payload); err != nil {
		cm.recordPublishError("middleware")
		return errors.Wrap(err, "ConnectionManager", "Publish", "send "+out.Subject())
	}

	if cm.metrics != nil {
		cm.metrics.RecordMessagePublished(out.Subject())
	}
	cm.logger.Debug("Message published", "subject", out.Subject(), "bytes", len(payload))
	return nil
}

func (cm *ConnectionManager) recordPublishError(reason string) {
	if cm.metrics != nil {
		cm.metrics.RecordPublishError(reason)
	}
}

// Subscribe delivers messages on subjects matching pattern to cb. Payloads
// that cannot be decoded, or fail validation when receive validation is on,
// are logged and dropped.
func (cm *ConnectionManager) Subscribe(ctx context.Context, pattern string, cb Callback) (middleware.Subscription, error) {
	if err := cm.ready("Subscribe"); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "ConnectionManager", "Subscribe", "callback is nil")
	}

	sub, err := cm.conn.Subscribe(ctx, pattern, func(ctx context.Context, subject string, payload []byte) {
		msg, err := message.FromJSON(payload)
		if err != nil {
			cm.logger.Warn("Dropping undecodable message", "subject", subject, "error", err)
			cm.recordReceived(pattern, "decode_error")
			return
		}
		if msg.Subject() == "" {
			msg.SetSubject(subject)
		}
		if published, err := msg.StringValue(FieldPublishTime); err == nil {
			if latency, err := timestamp.Since(published); err == nil {
				cm.logger.Debug("Message received", "subject", subject, "latency", latency)
			}
		}
		if cm.validateRecv {
			if err := cm.spec.ValidateMessage(msg); err != nil {
				cm.logger.Warn("Dropping invalid message", "subject", subject, "error", err)
				cm.recordReceived(pattern, "invalid")
				return
			}
		}
		if cm.dispatcher == nil {
			cm.recordReceived(pattern, "ok")
			cb(ctx, msg)
			return
		}
		if err := cm.dispatcher.Submit(delivery{cb: cb, msg: msg}); err != nil {
			cm.logger.Warn("Dropping message, dispatch queue unavailable", "subject", subject, "error", err)
			cm.recordReceived(pattern, "dropped")
			if cm.dropping.CompareAndSwap(false, true) {
				cm.monitor.UpdateDegraded("dispatch", "dropping messages: "+err.Error())
			}
			return
		}
		if cm.dropping.CompareAndSwap(true, false) {
			cm.monitor.UpdateHealthy("dispatch", "queue accepting")
		}
		cm.recordReceived(pattern, "ok")
	})
	if err != nil {
		return nil, errors.Wrap(err, "ConnectionManager", "Subscribe", "subscribe "+pattern)
	}

	cm.mu.Lock()
	cm.subs = append(cm.subs, sub)
	cm.mu.Unlock()
	return sub, nil
}

func dispatch(ctx context.Context, d delivery) error {
	d.cb(ctx, d.msg)
	return nil
}

func (cm *ConnectionManager) recordReceived(pattern, status string) {
	if cm.metrics != nil {
		cm.metrics.RecordMessageReceived(pattern, status)
	}
}

// Health aggregates the connection and hosted service statuses
func (cm *ConnectionManager) Health() health.Status {
	cm.svcMu.Lock()
	if cm.heartbeat != nil {
		cm.monitor.Update("heartbeat", cm.heartbeat.Health())
	}
	if cm.resource != nil {
		cm.monitor.Update("resource", cm.resource.Health())
	}
	cm.svcMu.Unlock()
	return cm.monitor.AggregateHealth("connmgr")
}

// Cleanup stops hosted services, removes subscriptions and closes the
// connection. Later calls do nothing.
func (cm *ConnectionManager) Cleanup(ctx context.Context) error {
	if !cm.closed.CompareAndSwap(false, true) {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error { cm.StopHeartbeatService(); return nil })
	g.Go(func() error { cm.StopResourceService(); return nil })
	_ = g.Wait()
	cm.mu.Lock()
	subs := slices.Clone(cm.subs)
	cm.subs = nil
	cm.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			cm.logger.Debug("Unsubscribe failed", "subject", sub.Subject(), "error", err)
		}
	}
	if cm.dispatcher != nil {
		if err := cm.dispatcher.Stop(stopTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if cm.cancel != nil {
		cm.cancel()
	}
	if err := cm.conn.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	cm.initialized.Store(false)
	cm.monitor.UpdateUnhealthy("connection", "closed")
	cm.logger.Info("Connection manager cleaned up")

	if err := errors.Join(errs...); err != nil {
		return errors.Wrap(err, "ConnectionManager", "Cleanup", "close connection")
	}
	return nil
}
