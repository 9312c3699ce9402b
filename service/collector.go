package service

import (
	"context"
	"runtime"
	"runtime/metrics"
	"sync"
)

// ResourceSample is one reading of host resources
type ResourceSample struct {
	OS           string
	CPUs         int
	CPUUtil      float64 // percent
	MemPhysTotal int64
	MemPhysAvail int64
	MemVirtTotal int64
	MemVirtAvail int64
	Disks        []DiskSample
}

// MemPhysUtil returns the used share of physical memory in percent
func (s ResourceSample) MemPhysUtil() float64 {
	if s.MemPhysTotal <= 0 {
		return 0
	}
	return 100 * float64(s.MemPhysTotal-s.MemPhysAvail) / float64(s.MemPhysTotal)
}

// DiskSample is the reading of one disk
type DiskSample struct {
	Name string
	Size int64
	Util float64 // percent
}

// ResourceCollector takes resource samples for a ResourceService
type ResourceCollector interface {
	Sample(ctx context.Context) (ResourceSample, error)
}

// ResourceCollectorFunc adapts a function to ResourceCollector
type ResourceCollectorFunc func(ctx context.Context) (ResourceSample, error)

// Sample calls f(ctx)
func (f ResourceCollectorFunc) Sample(ctx context.Context) (ResourceSample, error) {
	return f(ctx)
}

const (
	metricCPUTotal    = "/cpu/classes/total:cpu-seconds"
	metricCPUIdle     = "/cpu/classes/idle:cpu-seconds"
	metricMemTotal    = "/memory/classes/total:bytes"
	metricHeapFree    = "/memory/classes/heap/free:bytes"
	metricHeapRelease = "/memory/classes/heap/released:bytes"
)

// runtimeCollector reports the resources of the current process as seen
// by the Go runtime. It reports no disks.
type runtimeCollector struct {
	mu       sync.Mutex
	prevCPU  float64
	prevIdle float64
}

// NewRuntimeCollector returns a collector backed by runtime/metrics
func NewRuntimeCollector() ResourceCollector {
	return &runtimeCollector{}
}

func (c *runtimeCollector) Sample(context.Context) (ResourceSample, error) {
	samples := []metrics.Sample{
		{Name: metricCPUTotal},
		{Name: metricCPUIdle},
		{Name: metricMemTotal},
		{Name: metricHeapFree},
		{Name: metricHeapRelease},
	}
	metrics.Read(samples)

	values := make(map[string]float64, len(samples))
	for _, s := range samples {
		switch s.Value.Kind() {
		case metrics.KindFloat64:
			values[s.Name] = s.Value.Float64()
		case metrics.KindUint64:
			values[s.Name] = float64(s.Value.Uint64())
		}
	}

	c.mu.Lock()
	var util float64
	if dTotal := values[metricCPUTotal] - c.prevCPU; dTotal > 0 && c.prevCPU > 0 {
		dIdle := values[metricCPUIdle] - c.prevIdle
		util = 100 * (1 - dIdle/dTotal)
		util = min(max(util, 0), 100)
	}
	c.prevCPU = values[metricCPUTotal]
	c.prevIdle = values[metricCPUIdle]
	c.mu.Unlock()

	total := int64(values[metricMemTotal])
	free := int64(values[metricHeapFree])
	released := int64(values[metricHeapRelease])

	return ResourceSample{
		OS:           runtime.GOOS + "/" + runtime.GOARCH,
		CPUs:         runtime.NumCPU(),
		CPUUtil:      util,
		MemPhysTotal: total - released,
		MemPhysAvail: free,
		MemVirtTotal: total,
		MemVirtAvail: free + released,
	}, nil
}
