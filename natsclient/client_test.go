package natsclient

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

// unreachable is a loopback port nothing listens on
const unreachable = "nats://127.0.0.1:1"

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	assert.Equal(t, unreachable, c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, int32(5), c.circuitThreshold)
	assert.Equal(t, time.Second, c.Backoff())
}

func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"zero timeout", WithTimeout(0)},
		{"zero threshold", WithCircuitBreakerThreshold(0)},
		{"negative backoff", WithMaxBackoff(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(unreachable, tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrInvalidConfigValue)
		})
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)
	ctx := context.Background()

	err = c.Publish(ctx, "GMSEC.TEST", []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Subscribe(ctx, "GMSEC.>", func(context.Context, string, []byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var seen []ConnectionStatus
	c, err := NewClient(unreachable,
		WithCircuitBreakerThreshold(2),
		WithTimeout(200*time.Millisecond),
		WithMetrics(registry),
		WithStatusCallback(func(s ConnectionStatus) { seen = append(seen, s) }),
	)
	require.NoError(t, err)

	ctx := context.Background()
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.NotErrorIs(t, err, ErrCircuitOpen)

	err = c.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, int32(2), c.Failures())
	assert.Equal(t, 2*time.Second, c.Backoff())
	assert.Contains(t, seen, StatusCircuitOpen)

	err = c.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen, "open circuit fails fast")
	assert.Equal(t, int32(2), c.Failures())

	assert.Equal(t, 1.0, testutil.ToFloat64(registry.CoreMetrics().NATSCircuitBreaker))
}

func TestClient_CircuitBreakerHalfOpens(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(1), WithTimeout(200*time.Millisecond))
	require.NoError(t, err)
	c.backoff.Store(int64(50 * time.Millisecond))

	require.ErrorIs(t, c.Connect(context.Background()), ErrCircuitOpen)
	assert.Eventually(t, func() bool { return c.Status() == StatusDisconnected },
		time.Second, 10*time.Millisecond)
}

func TestClient_BackoffCapped(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(1), WithMaxBackoff(3*time.Second))
	require.NoError(t, err)

	for range 4 {
		c.recordFailure()
	}
	assert.Equal(t, 3*time.Second, c.Backoff())

	c.resetCircuit()
	assert.Equal(t, time.Second, c.Backoff())
	assert.Equal(t, int32(0), c.Failures())
}

func TestClient_ConnectCancelled(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(1), c.Failures())
}

func TestClient_CloseIdempotent(t *testing.T) {
	c, err := NewClient(unreachable, WithCredentials("user", "secret"))
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Empty(t, c.password)

	err = c.Connect(context.Background())
	assert.True(t, errors.IsFatal(err))
}

func TestWithTLSConfig(t *testing.T) {
	c, err := NewClient(unreachable, WithTLSConfig(nil))
	require.NoError(t, err)
	assert.Nil(t, c.tls)
	base := len(c.connectionOptions())

	cfg := &tls.Config{MinVersion: tls.VersionTLS13}
	c, err = NewClient(unreachable, WithTLSConfig(cfg))
	require.NoError(t, err)
	require.NotNil(t, c.tls)
	assert.NotSame(t, cfg, c.tls)
	assert.Equal(t, uint16(tls.VersionTLS13), c.tls.MinVersion)
	assert.Len(t, c.connectionOptions(), base+1)
}

func TestJetStream_NotConnected(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errors.IsTransient(err))

	err = c.PublishPersistent(context.Background(), "C2MS.MSG.HB", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}
