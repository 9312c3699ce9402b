package connmgr

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nasa/GMSEC-API-sub012/metric"
	"github.com/nasa/GMSEC-API-sub012/middleware"
	"github.com/nasa/GMSEC-API-sub012/mist"
	"github.com/nasa/GMSEC-API-sub012/pkg/retry"
)

// ConnectionFactory creates an unconnected middleware connection
type ConnectionFactory func() (middleware.Connection, error)

// Option configures a ConnectionManager
type Option func(*options)

type options struct {
	logger       *slog.Logger
	registry     *metric.MetricsRegistry
	spec         *mist.Specification
	conn         middleware.Connection
	factory      ConnectionFactory
	retry        retry.Config
	startTimeout time.Duration
	poll         time.Duration

	publishLimit *rate.Limiter

	dispatch        bool
	dispatchWorkers int
	dispatchQueue   int
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records publishes, receipts and validation outcomes
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) { o.registry = registry }
}

// WithSpecification shares spec instead of loading one from the config
func WithSpecification(spec *mist.Specification) Option {
	return func(o *options) { o.spec = spec }
}

// WithConnection uses conn for this manager only. Services still get
// connections from the factory.
func WithConnection(conn middleware.Connection) Option {
	return func(o *options) { o.conn = conn }
}

// WithConnectionFactory replaces the mw-id driver lookup
func WithConnectionFactory(f ConnectionFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithRetry sets the connect retry policy
func WithRetry(cfg retry.Config) Option {
	return func(o *options) { o.retry = cfg }
}

// WithServiceStartTimeout bounds how long Start*Service waits for the
// service to come up.
func WithServiceStartTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.startTimeout = d
		}
	}
}

// WithServicePollInterval sets the publish loop tick of hosted services
func WithServicePollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// WithAutoDispatch hands received messages to a pool of workers instead
// of running callbacks on the middleware's delivery goroutine. Messages
// arriving while the queue is full are dropped. Non-positive sizes select
// the worker package defaults.
func WithAutoDispatch(workers, queueSize int) Option {
	return func(o *options) {
		o.dispatch = true
		o.dispatchWorkers = workers
		o.dispatchQueue = queueSize
	}
}

// WithPublishRate caps Publish at limit messages per second with bursts of
// burst. Publish waits for a slot or for its context to end.
func WithPublishRate(limit float64, burst int) Option {
	return func(o *options) {
		if limit > 0 {
			o.publishLimit = rate.NewLimiter(rate.Limit(limit), max(burst, 1))
		}
	}
}
