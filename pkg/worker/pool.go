package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

// Defaults for non-positive sizes
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Pool runs processor on submitted items using a fixed set of workers
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error
	logger    *slog.Logger

	work chan T
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	depth    prometheus.Gauge
}

// Option configures a Pool
type Option[T any] func(*poolOptions)

type poolOptions struct {
	logger   *slog.Logger
	registry metric.MetricsRegistrar
	name     string
}

// WithLogger sets the logger used for processor failures
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports item counts, processing time and queue depth under name
func WithMetrics[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(o *poolOptions) {
		if registry != nil && name != "" {
			o.registry = registry
			o.name = name
		}
	}
}

// NewPool creates a pool. Non-positive workers or queueSize select the
// defaults.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if processor == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "worker", "NewPool", "check processor")
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	o := &poolOptions{logger: slog.Default().With("component", "worker")}
	for _, opt := range opts {
		opt(o)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		logger:    o.logger,
		work:      make(chan T, queueSize),
	}

	if o.registry != nil {
		p.items = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "gmsec",
			Subsystem:   "worker",
			Name:        "items_total",
			Help:        "Work items by outcome",
			ConstLabels: prometheus.Labels{"pool": o.name},
		}, []string{"outcome"})
		p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "gmsec",
			Subsystem:   "worker",
			Name:        "processing_duration_seconds",
			Help:        "Time spent processing one item",
			ConstLabels: prometheus.Labels{"pool": o.name},
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"outcome"})
		if err := o.registry.RegisterCounterVec(o.name, "worker_items", p.items); err != nil {
			return nil, errors.WrapTransient(err, "worker", "NewPool", "metrics registration")
		}
		p.depth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gmsec",
			Subsystem:   "worker",
			Name:        "queue_depth",
			Help:        "Items waiting for a worker",
			ConstLabels: prometheus.Labels{"pool": o.name},
		})
		if err := o.registry.RegisterHistogramVec(o.name, "worker_duration", p.duration); err != nil {
			return nil, errors.WrapTransient(err, "worker", "NewPool", "metrics registration")
		}
		if err := o.registry.RegisterGauge(o.name, "worker_queue_depth", p.depth); err != nil {
			return nil, errors.WrapTransient(err, "worker", "NewPool", "metrics registration")
		}
	}
	return p, nil
}

func (p *Pool[T]) count(outcome string) {
	if p.items != nil {
		p.items.WithLabelValues(outcome).Inc()
	}
}

func (p *Pool[T]) gauge() {
	if p.depth != nil {
		p.depth.Set(float64(len(p.work)))
	}
}

// Submit queues work without blocking
func (p *Pool[T]) Submit(work T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.stopped:
		return ErrPoolStopped
	case !p.started:
		return ErrPoolNotStarted
	}

	select {
	case p.work <- work:
		p.submitted.Add(1)
		p.count("submitted")
		p.gauge()
		return nil
	default:
		p.dropped.Add(1)
		p.count("dropped")
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is done or Stop has
// drained the queue.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for range p.workers {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued items to be
// processed.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.work)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats is a snapshot of pool counters
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns current counters
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.work),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.work:
			if !ok {
				return
			}
			p.gauge()
			p.process(ctx, item)
		}
	}
}

func (p *Pool[T]) process(ctx context.Context, item T) {
	start := time.Now()
	err := p.safeProcess(ctx, item)

	outcome := "processed"
	p.processed.Add(1)
	if err != nil {
		outcome = "failed"
		p.failed.Add(1)
		p.logger.Warn("Work item failed", "error", err)
	}
	p.count(outcome)
	if p.duration != nil {
		p.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}

func (p *Pool[T]) safeProcess(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return p.processor(ctx, item)
}
