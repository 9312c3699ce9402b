package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/mist"
	"github.com/nasa/GMSEC-API-sub012/pkg/buffer"
)

const (
	// DefaultSampleInterval is used when no sample interval is given
	DefaultSampleInterval = time.Second
	// DefaultAverageInterval is used when no averaging interval is given
	DefaultAverageInterval = 10 * time.Second

	maxWindowSamples = 4096
)

// ResourceService samples host resources every sample interval and
// publishes a resource message every pub-rate, with utilization averaged
// over the averaging interval. A pub-rate of zero publishes one message
// and ends the service.
type ResourceService struct {
	*base

	collector       ResourceCollector
	pubRate         time.Duration
	sampleInterval  time.Duration
	averageInterval time.Duration

	mu      sync.Mutex
	msg     *message.Message
	samples *buffer.Ring[ResourceSample]
}

// NewResourceService builds the resource message for spec from fields.
// Non-positive sample and averaging intervals select the defaults; an
// averaging interval shorter than the sample interval is raised to it.
func NewResourceService(
	spec *mist.Specification,
	factory PublisherFactory,
	fields []*message.Field,
	pubRate, sampleInterval, averageInterval time.Duration,
	opts ...Option,
) (*ResourceService, error) {
	if spec == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "ResourceService", "New", "specification is required")
	}
	if factory == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "ResourceService", "New", "publisher factory is required")
	}
	if pubRate < 0 || pubRate.Seconds() > math.MaxInt16 {
		return nil, errors.WrapInvalid(
			errors.Newf(errors.ErrInvalidConfigValue, "publish rate %s out of range", pubRate),
			"ResourceService", "New", "check publish rate")
	}
	if sampleInterval <= 0 {
		sampleInterval = DefaultSampleInterval
	}
	if averageInterval <= 0 {
		averageInterval = DefaultAverageInterval
	}
	averageInterval = max(averageInterval, sampleInterval)
	window := int(math.Ceil(float64(averageInterval) / float64(sampleInterval)))
	samples, err := buffer.NewRing[ResourceSample](min(window, maxWindowSamples))
	if err != nil {
		return nil, errors.Wrap(err, "ResourceService", "New", "create sample window")
	}

	msg, err := spec.NewMessage("RSRC", fields...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "ResourceService", "New", "build resource message")
	}
	msg.AddField(message.NewI16Field(fieldPubRate, int16(pubRate/time.Second)))
	if !msg.HasField(fieldCounter) {
		msg.AddField(message.NewI16Field(fieldCounter, 0))
	}

	o := applyOptions("resource", opts)
	if o.collector == nil {
		o.collector = NewRuntimeCollector()
	}
	return &ResourceService{
		base:            newBase("resource", factory, o),
		collector:       o.collector,
		pubRate:         pubRate,
		sampleInterval:  sampleInterval,
		averageInterval: averageInterval,
		msg:             msg,
		samples:         samples,
	}, nil
}

// Start sets up the publisher and runs the sampling loop until Stop is
// called, ctx is done, or the single publication of a zero pub-rate has
// been made. It blocks; use Go to run it in the background.
func (r *ResourceService) Start(ctx context.Context) error {
	return r.run(ctx, r.loop)
}

// Go runs Start on a new goroutine. Setup errors are logged.
func (r *ResourceService) Go(ctx context.Context) {
	go func() {
		_ = r.Start(ctx)
	}()
}

// Message returns a copy of the last built resource message
func (r *ResourceService) Message() *message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msg.Copy()
}

func (r *ResourceService) loop(ctx context.Context, pub Publisher) {
	now := time.Now()
	r.sample(ctx)
	r.publish(ctx, pub, r.build())
	if r.pubRate == 0 {
		r.logger.Info("Publish rate is zero, resource message published once")
		return
	}

	lastSample, lastPublish := now, now
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for r.wait(ctx, ticker) {
		now := time.Now()
		if now.Sub(lastSample) >= r.sampleInterval {
			r.sample(ctx)
			lastSample = now
		}
		if now.Sub(lastPublish) >= r.pubRate {
			r.publish(ctx, pub, r.build())
			lastPublish = now
		}
	}
}

// sample records one reading. The window holds as many readings as fit
// in the averaging interval, so older ones fall out as new ones arrive.
func (r *ResourceService) sample(ctx context.Context) {
	s, err := r.collector.Sample(ctx)
	if err != nil {
		r.logger.Warn("Resource sample failed", "error", err)
		return
	}
	r.samples.Write(s)
}

// build writes the averaged readings into the resource message and
// returns a copy to publish.
func (r *ResourceService) build() *message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, err := r.msg.Field(fieldCounter); err == nil {
		if next, err := nextCounter(f); err == nil {
			r.msg.AddField(next)
		}
	}

	samples := r.samples.Items()
	if len(samples) == 0 {
		return r.msg.Copy()
	}

	var cpu, mem float64
	for _, s := range samples {
		cpu += s.CPUUtil
		mem += s.MemPhysUtil()
	}
	n := float64(len(samples))
	latest := samples[len(samples)-1]

	r.msg.AddFields(
		message.NewStringField("OPER-SYS", latest.OS),
		message.NewI16Field("NUM-OF-CPUS", clampI16(latest.CPUs)),
		message.NewF32Field("CPU-UTIL-TOTAL", float32(cpu/n)),
		message.NewI64Field("MEM-PHYS-TOTAL", latest.MemPhysTotal),
		message.NewI64Field("MEM-PHYS-AVAIL", latest.MemPhysAvail),
		message.NewF32Field("MEM-PHYS-UTIL", float32(mem/n)),
		message.NewI64Field("MEM-VIRT-TOTAL", latest.MemVirtTotal),
		message.NewI64Field("MEM-VIRT-AVAIL", latest.MemVirtAvail),
	)

	for _, f := range r.msg.Fields() {
		if strings.HasPrefix(f.Name(), "DISK.") {
			r.msg.ClearField(f.Name())
		}
	}
	if len(latest.Disks) == 0 {
		r.msg.ClearField("NUM-OF-DISKS")
		return r.msg.Copy()
	}
	r.msg.AddField(message.NewI16Field("NUM-OF-DISKS", clampI16(len(latest.Disks))))
	for i, d := range latest.Disks {
		prefix := fmt.Sprintf("DISK.%d.", i+1)
		r.msg.AddFields(
			message.NewStringField(prefix+"NAME", d.Name),
			message.NewI64Field(prefix+"SIZE", d.Size),
			message.NewF32Field(prefix+"UTIL", float32(d.Util)),
		)
	}
	return r.msg.Copy()
}

func clampI16(n int) int16 {
	return int16(min(max(n, 0), math.MaxInt16))
}
