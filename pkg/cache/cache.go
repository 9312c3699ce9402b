// Package cache provides a generic, thread-safe LRU cache with hit and
// miss statistics and optional Prometheus export. The specification engine
// uses it to keep compiled value patterns.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

// Cache is a keyed store with bounded size
type Cache[V any] interface {
	// Get returns the value and true when present
	Get(key string) (V, bool)

	// Set stores value and reports whether a new entry was created
	Set(key string, value V) (bool, error)

	// Delete removes key and reports whether it existed
	Delete(key string) bool

	// Size returns the number of entries
	Size() int

	// Stats returns the live statistics
	Stats() *Statistics
}

// Statistics counts cache activity
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Hits returns the number of successful lookups
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the number of failed lookups
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Evictions returns the number of entries dropped for capacity
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// HitRatio returns hits/(hits+misses), or 0 before any lookup
func (s *Statistics) HitRatio() float64 {
	total := s.Hits() + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

// Option configures a cache
type Option func(*options)

type options struct {
	registry metric.MetricsRegistrar
	name     string
}

// WithMetrics exports lookup and eviction counters and the entry count
// under the given component name. A nil registry or empty name is ignored.
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(o *options) {
		if registry != nil && name != "" {
			o.registry = registry
			o.name = name
		}
	}
}

type lruEntry[V any] struct {
	key   string
	value V
}

type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
	stats   *Statistics

	lookups   *prometheus.CounterVec
	evictions prometheus.Counter
	entries   prometheus.Gauge
}

// NewLRU creates a cache holding at most maxSize entries
func NewLRU[V any](maxSize int, opts ...Option) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfigValue, "cache", "NewLRU", "maxSize must be positive")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   &Statistics{},
	}

	if o.registry != nil {
		c.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "gmsec",
			Subsystem:   "cache",
			Name:        "lookups_total",
			Help:        "Cache lookups by result",
			ConstLabels: prometheus.Labels{"component": o.name},
		}, []string{"result"})
		c.evictions = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gmsec",
			Subsystem:   "cache",
			Name:        "evictions_total",
			Help:        "Entries dropped for capacity",
			ConstLabels: prometheus.Labels{"component": o.name},
		})
		c.entries = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gmsec",
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Entries currently held",
			ConstLabels: prometheus.Labels{"component": o.name},
		})
		if err := o.registry.RegisterCounterVec(o.name, "cache_lookups", c.lookups); err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewLRU", "metrics registration")
		}
		if err := o.registry.RegisterCounter(o.name, "cache_evictions", c.evictions); err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewLRU", "metrics registration")
		}
		if err := o.registry.RegisterGauge(o.name, "cache_entries", c.entries); err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewLRU", "metrics registration")
		}
	}
	return c, nil
}

// sized updates the entry gauge; c.mu must be held
func (c *lruCache[V]) sized() {
	if c.entries != nil {
		c.entries.Set(float64(len(c.items)))
	}
}

func (c *lruCache[V]) record(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		c.stats.misses.Add(1)
		c.record("miss")
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.hits.Add(1)
	c.record("hit")
	return element.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if key == "" {
		return false, errors.WrapInvalid(errors.ErrInvalidData, "cache", "Set", "key cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	for len(c.items) > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry[V]).key)
		c.stats.evictions.Add(1)
		if c.evictions != nil {
			c.evictions.Inc()
		}
	}
	c.sized()
	return true, nil
}

func (c *lruCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(element)
	delete(c.items, key)
	c.sized()
	return true
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) Stats() *Statistics {
	return c.stats
}
