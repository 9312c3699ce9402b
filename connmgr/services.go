package connmgr

import (
	"context"
	"time"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/pkg/timestamp"
	"github.com/nasa/GMSEC-API-sub012/service"
)

// Log severities carried in the SEVERITY field of MSG.LOG
const (
	SeverityDebug int16 = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// servicePublisher is the Publisher handed to hosted services. Each one
// wraps a private ConnectionManager.
type servicePublisher struct {
	cm *ConnectionManager
}

func (p *servicePublisher) Initialize(ctx context.Context) error {
	return p.cm.Initialize(ctx)
}

func (p *servicePublisher) Publish(ctx context.Context, msg *message.Message) error {
	return p.cm.Publish(ctx, msg)
}

func (p *servicePublisher) Cleanup(ctx context.Context) error {
	return p.cm.Cleanup(ctx)
}

// publisherFactory builds ConnectionManagers that share this manager's
// configuration, specification, standard fields and connection factory.
func (cm *ConnectionManager) publisherFactory(name string) service.PublisherFactory {
	return func() (service.Publisher, error) {
		conn, err := cm.factory()
		if err != nil {
			return nil, err
		}
		child, err := New(cm.cfg,
			WithSpecification(cm.spec),
			WithConnection(conn),
			WithConnectionFactory(cm.factory),
			WithLogger(cm.logger.With("service", name)),
			WithMetrics(cm.registry),
			WithRetry(cm.retry),
		)
		if err != nil {
			return nil, err
		}
		child.SetStandardFields(cm.StandardFields()...)
		return &servicePublisher{cm: child}, nil
	}
}

func (cm *ConnectionManager) serviceOptions(name string) []service.Option {
	return []service.Option{
		service.WithLogger(cm.logger.With("service", name)),
		service.WithMetrics(cm.registry),
		service.WithPollInterval(cm.poll),
	}
}

// withStandard prepends the standard fields to fields
func (cm *ConnectionManager) withStandard(fields []*message.Field) []*message.Field {
	return append(cm.StandardFields(), fields...)
}

// launch runs start on its own goroutine under a context derived from the
// manager's and waits until the service is up, its setup has failed, or
// the start timeout passes. The returned cancel ends the service; it has
// already been called when launch fails.
func (cm *ConnectionManager) launch(start func(context.Context) error, started <-chan struct{}) (context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(cm.ctx)
	done := make(chan error, 1)
	go func() { done <- start(ctx) }()

	timer := time.NewTimer(cm.startTimeout)
	defer timer.Stop()

	select {
	case <-started:
		return cancel, nil
	case err := <-done:
		cancel()
		return nil, err
	case <-timer.C:
		// Setup may still be blocked; cancelling keeps a late start from
		// entering its publish loop untracked.
		cancel()
		return nil, errors.WrapTransient(
			errors.Newf(errors.ErrConnectionTimeout, "service did not start within %s", cm.startTimeout),
			"ConnectionManager", "launch", "await start")
	}
}

// StartHeartbeatService starts publishing heartbeats built from the
// standard fields plus fields. It returns once the first heartbeat is
// about to go out.
func (cm *ConnectionManager) StartHeartbeatService(fields ...*message.Field) error {
	if err := cm.ready("StartHeartbeatService"); err != nil {
		return err
	}

	cm.svcMu.Lock()
	defer cm.svcMu.Unlock()
	if cm.heartbeat != nil && cm.heartbeat.Running() {
		return errors.WrapInvalid(
			errors.Newf(errors.ErrAlreadyStarted, "heartbeat service is running"),
			"ConnectionManager", "StartHeartbeatService", "start service")
	}

	hb, err := service.NewHeartbeatService(cm.spec, cm.publisherFactory("heartbeat"),
		cm.withStandard(fields), cm.serviceOptions("heartbeat")...)
	if err != nil {
		return errors.Wrap(err, "ConnectionManager", "StartHeartbeatService", "create service")
	}

	cancel, err := cm.launch(hb.Start, hb.Started())
	if err != nil {
		return errors.Wrap(err, "ConnectionManager", "StartHeartbeatService", "start heartbeat service")
	}
	cm.heartbeat, cm.hbCancel = hb, cancel
	return nil
}

// SetHeartbeatServiceField changes a field of the running heartbeat
func (cm *ConnectionManager) SetHeartbeatServiceField(f *message.Field) error {
	cm.svcMu.Lock()
	hb := cm.heartbeat
	cm.svcMu.Unlock()

	if hb == nil {
		return errors.WrapInvalid(
			errors.Newf(errors.ErrNotStarted, "heartbeat service is not running"),
			"ConnectionManager", "SetHeartbeatServiceField", "set field")
	}
	return hb.SetField(f)
}

// StopHeartbeatService stops the heartbeat service and reports whether it
// was running.
func (cm *ConnectionManager) StopHeartbeatService() bool {
	cm.svcMu.Lock()
	hb, cancel := cm.heartbeat, cm.hbCancel
	cm.heartbeat, cm.hbCancel = nil, nil
	cm.svcMu.Unlock()

	cm.monitor.Remove("heartbeat")
	if hb == nil {
		return false
	}
	defer cancel()
	return hb.Stop(stopTimeout)
}

// StartResourceService starts publishing resource messages every pubRate,
// sampled every sampleInterval and averaged over averageInterval. A zero
// pubRate publishes a single message.
func (cm *ConnectionManager) StartResourceService(pubRate, sampleInterval, averageInterval time.Duration, fields ...*message.Field) error {
	if err := cm.ready("StartResourceService"); err != nil {
		return err
	}

	cm.svcMu.Lock()
	defer cm.svcMu.Unlock()
	if cm.resource != nil && cm.resource.Running() {
		return errors.WrapInvalid(
			errors.Newf(errors.ErrAlreadyStarted, "resource service is running"),
			"ConnectionManager", "StartResourceService", "start service")
	}

	rs, err := service.NewResourceService(cm.spec, cm.publisherFactory("resource"),
		cm.withStandard(fields), pubRate, sampleInterval, averageInterval, cm.serviceOptions("resource")...)
	if err != nil {
		return errors.Wrap(err, "ConnectionManager", "StartResourceService", "create service")
	}

	cancel, err := cm.launch(rs.Start, rs.Started())
	if err != nil {
		return errors.Wrap(err, "ConnectionManager", "StartResourceService", "start resource service")
	}
	cm.resource, cm.rsCancel = rs, cancel
	return nil
}

// StopResourceService stops the resource service and reports whether it
// was running.
func (cm *ConnectionManager) StopResourceService() bool {
	cm.svcMu.Lock()
	rs, cancel := cm.resource, cm.rsCancel
	cm.resource, cm.rsCancel = nil, nil
	cm.svcMu.Unlock()

	cm.monitor.Remove("resource")
	if rs == nil {
		return false
	}
	defer cancel()
	return rs.Stop(stopTimeout)
}

// PublishLog publishes a MSG.LOG with text at severity. Fields override
// the defaults SUBCLASS=INFO and OCCURRENCE-TYPE=SYS.
func (cm *ConnectionManager) PublishLog(ctx context.Context, text string, severity int16, fields ...*message.Field) error {
	if severity < SeverityDebug || severity > SeverityCritical {
		return errors.WrapInvalid(
			errors.Newf(errors.ErrInvalidData, "severity %d outside %d..%d", severity, SeverityDebug, SeverityCritical),
			"ConnectionManager", "PublishLog", "check severity")
	}

	body := []*message.Field{
		message.NewStringField("SUBCLASS", "INFO"),
		message.NewStringField("OCCURRENCE-TYPE", "SYS"),
		message.NewI16Field("SEVERITY", severity),
	}
	for _, f := range fields {
		if f == nil {
			continue
		}
		body = append(body, f)
	}

	msg, err := cm.spec.NewMessage("LOG", cm.withStandard(body)...)
	if err != nil {
		return errors.Wrap(err, "ConnectionManager", "PublishLog", "build log message")
	}
	// NewMessage flags everything it is given as header; the body is not.
	for _, f := range body {
		c := f.Copy()
		c.SetHeader(false)
		msg.AddField(c)
	}
	msg.AddField(message.NewStringField("MSG-TEXT", text))
	msg.AddField(message.NewStringField("EVENT-TIME", timestamp.Now()))

	return cm.Publish(ctx, msg)
}
