package service

import (
	"context"
	"sync"
	"time"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

const (
	fieldPubRate = "PUB-RATE"
	fieldCounter = "COUNTER"

	// DefaultHeartbeatRate is the PUB-RATE used when none is given, in seconds
	DefaultHeartbeatRate = 30
)

// HeartbeatService publishes a heartbeat message every PUB-RATE seconds.
// The first heartbeat goes out as soon as the service is running. A
// PUB-RATE of zero disables periodic publication; the service keeps
// running and publishes once each time PUB-RATE is set to zero again.
type HeartbeatService struct {
	*base

	mu         sync.Mutex
	msg        *message.Message
	interval   time.Duration
	last       time.Time
	publishNow bool
}

// NewHeartbeatService builds the heartbeat message for spec from fields
// (MISSION-ID, COMPONENT and any other standard fields). PUB-RATE defaults
// to DefaultHeartbeatRate and COUNTER starts at 0.
func NewHeartbeatService(spec *mist.Specification, factory PublisherFactory, fields []*message.Field, opts ...Option) (*HeartbeatService, error) {
	if spec == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "HeartbeatService", "New", "specification is required")
	}
	if factory == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "HeartbeatService", "New", "publisher factory is required")
	}

	msg, err := spec.NewMessage("HB", fields...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "HeartbeatService", "New", "build heartbeat message")
	}
	if !msg.HasField(fieldPubRate) {
		msg.AddField(message.NewI16Field(fieldPubRate, DefaultHeartbeatRate))
	}
	if !msg.HasField(fieldCounter) {
		msg.AddField(message.NewI16Field(fieldCounter, 0))
	}
	rate, _ := msg.Field(fieldPubRate)

	o := applyOptions("heartbeat", opts)
	return &HeartbeatService{
		base:     newBase("heartbeat", factory, o),
		msg:      msg,
		interval: rateInterval(rate),
	}, nil
}

// Start sets up the publisher and runs the publish loop until Stop is
// called or ctx is done. It blocks; use Go to run it in the background.
func (h *HeartbeatService) Start(ctx context.Context) error {
	return h.run(ctx, h.loop)
}

// Go runs Start on a new goroutine. Setup errors are logged.
func (h *HeartbeatService) Go(ctx context.Context) {
	go func() {
		_ = h.Start(ctx)
	}()
}

// SetField replaces or adds a field of the heartbeat message. The change
// is carried by the next heartbeat. Setting PUB-RATE changes the interval;
// a rate of zero publishes once right away.
func (h *HeartbeatService) SetField(f *message.Field) error {
	if f == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "HeartbeatService", "SetField", "field is nil")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.msg.AddField(f.Copy())
	if f.Name() == fieldPubRate {
		h.interval = rateInterval(f)
		if h.interval == 0 {
			h.publishNow = true
		}
	}
	return nil
}

// Message returns a copy of the current heartbeat message
func (h *HeartbeatService) Message() *message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.msg.Copy()
}

func (h *HeartbeatService) loop(ctx context.Context, pub Publisher) {
	h.mu.Lock()
	h.publishNow = true
	h.mu.Unlock()

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	for {
		if msg := h.due(time.Now()); msg != nil {
			h.publish(ctx, pub, msg)
		}
		if !h.wait(ctx, ticker) {
			return
		}
	}
}

// due advances COUNTER and returns the heartbeat to send, or nil when
// nothing is due at now.
func (h *HeartbeatService) due(now time.Time) *message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.publishNow && (h.interval <= 0 || now.Sub(h.last) < h.interval) {
		return nil
	}
	h.publishNow = false
	h.last = now

	if f, err := h.msg.Field(fieldCounter); err == nil {
		next, err := nextCounter(f)
		if err != nil {
			h.logger.Warn("Cannot advance counter", "error", err)
		} else {
			h.msg.AddField(next)
		}
	}
	return h.msg.Copy()
}
