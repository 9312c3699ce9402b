package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

func noop(context.Context, int) error { return nil }

func TestNewPool_Defaults(t *testing.T) {
	p, err := NewPool(0, 0, noop)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, p.Stats().Workers)
	assert.Equal(t, DefaultQueueSize, p.Stats().QueueSize)

	_, err = NewPool[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
	assert.True(t, errors.IsInvalid(err))
}

func TestPool_Lifecycle(t *testing.T) {
	p, err := NewPool(2, 4, noop)
	require.NoError(t, err)

	assert.ErrorIs(t, p.Submit(1), ErrPoolNotStarted)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, p.Stop(time.Second))
	require.NoError(t, p.Stop(time.Second))
	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
}

func TestPool_ProcessesEverything(t *testing.T) {
	var sum atomic.Int64
	p, err := NewPool(3, 100, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 50; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(time.Second), "stop drains the queue")

	assert.Equal(t, int64(1275), sum.Load())
	stats := p.Stats()
	assert.Equal(t, int64(50), stats.Submitted)
	assert.Equal(t, int64(50), stats.Processed)
}

func TestPool_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	p, err := NewPool(1, 1, func(_ context.Context, _ int) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(1))
	<-started
	require.NoError(t, p.Submit(2))
	assert.ErrorIs(t, p.Submit(3), ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Dropped)

	close(release)
	require.NoError(t, p.Stop(time.Second))
}

func TestPool_FailuresAndPanics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	p, err := NewPool(1, 10, func(_ context.Context, n int) error {
		switch n {
		case 1:
			return stderrors.New("callback failed")
		case 2:
			panic("boom")
		}
		return nil
	}, WithMetrics[int](registry, "dispatch"))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 3; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(time.Second))

	assert.Equal(t, int64(2), p.Stats().Failed)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.items.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.items.WithLabelValues("processed")))

	_, err = NewPool(1, 1, noop, WithMetrics[int](registry, "dispatch"))
	assert.Error(t, err, "duplicate pool name")
}

func TestPool_QueueDepthGauge(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	block := make(chan struct{})
	picked := make(chan struct{}, 1)
	p, err := NewPool(1, 4, func(context.Context, int) error {
		picked <- struct{}{}
		<-block
		return nil
	}, WithMetrics[int](registry, "depth"))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(1))
	<-picked
	require.NoError(t, p.Submit(2))
	require.NoError(t, p.Submit(3))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.depth))

	close(block)
	go func() {
		for range picked {
		}
	}()
	require.NoError(t, p.Stop(time.Second))
	close(picked)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.depth))
}

func TestPool_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	p, err := NewPool(1, 1, func(context.Context, int) error {
		<-block
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Submit(1))

	assert.ErrorIs(t, p.Stop(20*time.Millisecond), ErrStopTimeout)
}

func TestPool_ContextCancelStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewPool(2, 10, noop)
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))

	cancel()
	require.NoError(t, p.Stop(time.Second))
}
