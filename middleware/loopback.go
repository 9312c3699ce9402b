package middleware

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Bus is an in-process message bus shared by loopback connections.
// Delivery is synchronous in the publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*loopbackSub
	nextID atomic.Uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*loopbackSub)}
}

var (
	defaultBus     *Bus
	defaultBusOnce sync.Once
)

// DefaultBus returns the process-wide bus
func DefaultBus() *Bus {
	defaultBusOnce.Do(func() { defaultBus = NewBus() })
	return defaultBus
}

func (b *Bus) add(s *loopbackSub) {
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
}

func (b *Bus) remove(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	return true
}

func (b *Bus) deliver(ctx context.Context, subject string, payload []byte) int {
	b.mu.RLock()
	var targets []*loopbackSub
	for _, s := range b.subs {
		if Match(s.pattern, subject) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.handler(ctx, subject, append([]byte(nil), payload...))
	}
	return len(targets)
}

type loopbackSub struct {
	id      uint64
	pattern string
	handler Handler
	bus     *Bus
}

func (s *loopbackSub) Subject() string { return s.pattern }

func (s *loopbackSub) Unsubscribe() error {
	if !s.bus.remove(s.id) {
		return errors.Newf(errors.ErrNotStarted, "subscription to %q already removed", s.pattern)
	}
	return nil
}

// LoopbackConnection publishes to and subscribes on a Bus
type LoopbackConnection struct {
	bus       *Bus
	connected atomic.Bool

	mu   sync.Mutex
	subs []*loopbackSub
}

// NewLoopback creates a loopback connection on bus
func NewLoopback(bus *Bus) *LoopbackConnection {
	return &LoopbackConnection{bus: bus}
}

// Connect marks the connection usable
func (c *LoopbackConnection) Connect(context.Context) error {
	c.connected.Store(true)
	return nil
}

// Publish delivers payload to every matching subscription on the bus
func (c *LoopbackConnection) Publish(ctx context.Context, subject string, payload []byte) error {
	if !c.connected.Load() {
		return errors.WrapTransient(errors.ErrNoConnection, "LoopbackConnection", "Publish", "publish "+subject)
	}
	if err := ValidSubject(subject); err != nil {
		return errors.WrapInvalid(err, "LoopbackConnection", "Publish", "check subject")
	}
	c.bus.deliver(ctx, subject, payload)
	return nil
}

// Subscribe registers handler for subjects matching pattern
func (c *LoopbackConnection) Subscribe(_ context.Context, pattern string, handler Handler) (Subscription, error) {
	if !c.connected.Load() {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "LoopbackConnection", "Subscribe", "subscribe "+pattern)
	}
	if err := ValidPattern(pattern); err != nil {
		return nil, errors.WrapInvalid(err, "LoopbackConnection", "Subscribe", "check subject")
	}

	s := &loopbackSub{id: c.bus.nextID.Add(1), pattern: pattern, handler: handler, bus: c.bus}
	c.bus.add(s)

	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s, nil
}

// Close removes this connection's subscriptions
func (c *LoopbackConnection) Close(context.Context) error {
	if !c.connected.Swap(false) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		c.bus.remove(s.id)
	}
	c.subs = nil
	return nil
}

// Library identifies the driver
func (c *LoopbackConnection) Library() string { return "loopback" }
