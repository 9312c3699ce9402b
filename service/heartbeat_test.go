package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

const fastPoll = 10 * time.Millisecond

func newHeartbeat(t *testing.T, pub *recorder, extra ...*message.Field) *HeartbeatService {
	t.Helper()
	hb, err := NewHeartbeatService(spec(t), pub.factory(), standardFields(extra...), WithPollInterval(fastPoll))
	require.NoError(t, err)
	return hb
}

func TestHeartbeat_FirstPublishIsImmediate(t *testing.T) {
	pub := &recorder{}
	hb := newHeartbeat(t, pub, message.NewI16Field("PUB-RATE", 30))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	hb.Go(ctx)
	require.True(t, hb.AwaitStart(time.Second))
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)

	msg := pub.last()
	assert.Equal(t, "C2MS.FILL.FILL.MISSION.FILL.FILL.FILL.MSG.HB.COMP", msg.Subject())
	assert.Equal(t, int64(1), counterOf(t, msg))
	assert.NoError(t, spec(t).ValidateMessage(msg))

	assert.True(t, hb.Stop(time.Second))
	assert.Equal(t, StateStopped, hb.State())
	assert.Equal(t, 1, pub.cleanupCount())
	assert.Equal(t, 1, pub.count(), "no second heartbeat within the 30s rate")
}

func TestHeartbeat_PublishesEveryInterval(t *testing.T) {
	pub := &recorder{}
	hb := newHeartbeat(t, pub, message.NewI16Field("PUB-RATE", 1))

	hb.Go(context.Background())
	require.True(t, hb.AwaitStart(time.Second))
	require.Eventually(t, func() bool { return pub.count() >= 2 }, 3*time.Second, 10*time.Millisecond)
	require.True(t, hb.Stop(time.Second))

	assert.Equal(t, int64(2), counterOf(t, pub.messages[1]))
}

func TestHeartbeat_StopWhenNotRunning(t *testing.T) {
	hb := newHeartbeat(t, &recorder{})

	start := time.Now()
	assert.False(t, hb.Stop(5*time.Second))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, StateCreated, hb.State())
}

func TestHeartbeat_StopTwice(t *testing.T) {
	hb := newHeartbeat(t, &recorder{})
	hb.Go(context.Background())
	require.True(t, hb.AwaitStart(time.Second))

	assert.True(t, hb.Stop(time.Second))
	assert.False(t, hb.Stop(time.Second))
	assert.False(t, hb.Running())

	err := hb.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestHeartbeat_CounterWraps(t *testing.T) {
	pub := &recorder{}
	hb := newHeartbeat(t, pub)
	require.NoError(t, hb.SetField(message.NewI16Field("COUNTER", 32766)))

	hb.Go(context.Background())
	require.True(t, hb.AwaitStart(time.Second))
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(32767), counterOf(t, pub.last()))

	// a zero rate arms one more publication
	require.NoError(t, hb.SetField(message.NewI16Field("PUB-RATE", 0)))
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), counterOf(t, pub.last()))

	require.True(t, hb.Stop(time.Second))
}

func TestNextCounter(t *testing.T) {
	tests := []struct {
		name  string
		field *message.Field
		want  string
	}{
		{"i16 increments", message.NewI16Field("COUNTER", 41), "42"},
		{"i16 wraps", message.NewI16Field("COUNTER", 32767), "1"},
		{"i16 negative restarts", message.NewI16Field("COUNTER", -5), "1"},
		{"u16 wraps", message.NewU16Field("COUNTER", 65535), "1"},
		{"u8 wraps", message.NewU8Field("COUNTER", 255), "1"},
		{"u64 wraps", message.NewU64Field("COUNTER", ^uint64(0)), "1"},
		{"i32 increments", message.NewI32Field("COUNTER", 32767), "32768"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := nextCounter(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.field.Type(), next.Type())
			assert.Equal(t, tt.want, next.StringValue())
		})
	}

	_, err := nextCounter(message.NewStringField("COUNTER", "1"))
	assert.ErrorIs(t, err, errors.ErrInvalidType)
}

func TestHeartbeat_ZeroRateDisablesPeriodicPublish(t *testing.T) {
	pub := &recorder{}
	hb := newHeartbeat(t, pub, message.NewI16Field("PUB-RATE", 0))

	hb.Go(context.Background())
	require.True(t, hb.AwaitStart(time.Second))
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(10 * fastPoll)
	assert.Equal(t, 1, pub.count())
	assert.True(t, hb.Running(), "a zero rate keeps the heartbeat service alive")

	require.NoError(t, hb.SetField(message.NewI16Field("COMPONENT-STATUS", 3)))
	require.NoError(t, hb.SetField(message.NewI16Field("PUB-RATE", 0)))
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	status, err := pub.last().I64Value("COMPONENT-STATUS")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status)
	require.True(t, hb.Stop(time.Second))
}

func TestHeartbeat_SetupFailure(t *testing.T) {
	pub := &recorder{initErr: fmt.Errorf("connection refused")}
	hb := newHeartbeat(t, pub)

	err := hb.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.False(t, hb.AwaitStart(20*time.Millisecond))
	assert.False(t, hb.Running())
	assert.Equal(t, StateStopped, hb.State())
	assert.Equal(t, 1, pub.cleanupCount(), "teardown cleans up after a failed setup")
	assert.True(t, hb.Health().IsUnhealthy())
}

func TestHeartbeat_FactoryFailure(t *testing.T) {
	hb, err := NewHeartbeatService(spec(t), func() (Publisher, error) {
		return nil, fmt.Errorf("no middleware")
	}, standardFields())
	require.NoError(t, err)

	require.Error(t, hb.Start(context.Background()))
	assert.Equal(t, StateStopped, hb.State())
}

func TestHeartbeat_PublishFailureIsRetried(t *testing.T) {
	pub := &recorder{publishErrs: errorsN(1)}
	hb := newHeartbeat(t, pub, message.NewI16Field("PUB-RATE", 1))

	hb.Go(context.Background())
	require.True(t, hb.AwaitStart(time.Second))
	require.Eventually(t, func() bool { return hb.Health().IsDegraded() }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return pub.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.True(t, hb.Health().IsHealthy())
	assert.Equal(t, 1, hb.Health().Metrics.ErrorCount)
	assert.Equal(t, int64(1), hb.Published())
	require.True(t, hb.Stop(time.Second))
}

func TestHeartbeat_ContextCancel(t *testing.T) {
	pub := &recorder{}
	hb := newHeartbeat(t, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hb.Start(ctx) }()
	require.True(t, hb.AwaitStart(time.Second))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("service did not stop on cancel")
	}
	assert.Equal(t, StateStopped, hb.State())
	assert.Equal(t, 1, pub.cleanupCount())
}

// slowPublisher holds Initialize until release is closed, whatever the context
type slowPublisher struct {
	*recorder
	release chan struct{}
}

func (p *slowPublisher) Initialize(ctx context.Context) error {
	<-p.release
	return p.recorder.Initialize(ctx)
}

func TestHeartbeat_CancelledDuringSetup(t *testing.T) {
	pub := &slowPublisher{recorder: &recorder{}, release: make(chan struct{})}
	hb, err := NewHeartbeatService(spec(t), func() (Publisher, error) { return pub, nil },
		standardFields(), WithPollInterval(fastPoll))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hb.Start(ctx) }()

	cancel()
	close(pub.release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("service entered its publish loop after cancel")
	}
	assert.False(t, hb.AwaitStart(20*time.Millisecond))
	assert.False(t, hb.Running())
	assert.Equal(t, StateStopped, hb.State())
	assert.Zero(t, pub.count())
	assert.Equal(t, 1, pub.cleanupCount())
}

func TestHeartbeat_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pub := &recorder{}
	hb, err := NewHeartbeatService(spec(t), pub.factory(), standardFields(),
		WithPollInterval(fastPoll), WithMetrics(registry))
	require.NoError(t, err)

	gauge := registry.CoreMetrics().ServiceStatus.WithLabelValues("heartbeat")
	assert.Equal(t, float64(StateCreated.Ordinal()), testutil.ToFloat64(gauge))

	hb.Go(context.Background())
	require.True(t, hb.AwaitStart(time.Second))
	assert.Equal(t, float64(StateRunning.Ordinal()), testutil.ToFloat64(gauge))

	require.True(t, hb.Stop(time.Second))
	assert.Equal(t, float64(StateStopped.Ordinal()), testutil.ToFloat64(gauge))
}

func TestNewHeartbeatService_Errors(t *testing.T) {
	_, err := NewHeartbeatService(nil, (&recorder{}).factory(), standardFields())
	assert.True(t, errors.IsInvalid(err))

	_, err = NewHeartbeatService(spec(t), nil, standardFields())
	assert.True(t, errors.IsInvalid(err))

	_, err = NewHeartbeatService(spec(t), (&recorder{}).factory(), []*message.Field{
		message.NewStringField("MISSION-ID", "MISSION"),
	})
	assert.ErrorIs(t, err, errors.ErrFieldNotFound)

	hb := newHeartbeat(t, &recorder{})
	assert.Error(t, hb.SetField(nil))
	rate, err := hb.Message().I64Value("PUB-RATE")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultHeartbeatRate), rate)
}
