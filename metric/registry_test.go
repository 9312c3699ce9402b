package metric

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

func gathered(t *testing.T, registry *MetricsRegistry, name string) bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return true
		}
	}
	return false
}

func TestMetricsRegistry_RegisterCollectors(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "test"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist", Help: "test"}, []string{"op"})

	require.NoError(t, registry.RegisterCounter("svc", "test_counter", counter))
	require.NoError(t, registry.RegisterGauge("svc", "test_gauge", gauge))
	require.NoError(t, registry.RegisterHistogramVec("svc", "test_hist", hist))

	counter.Inc()
	gauge.Set(3)
	hist.WithLabelValues("x").Observe(0.1)

	assert.True(t, gathered(t, registry, "test_counter"))
	assert.True(t, gathered(t, registry, "test_gauge"))
	assert.True(t, gathered(t, registry, "test_hist"))
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "test"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "test"})

	require.NoError(t, registry.RegisterCounter("svc", "dup_total", first))

	err := registry.RegisterCounter("svc", "dup_total", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// same collector name under another service collides in prometheus
	err = registry.RegisterCounter("other", "dup_total", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gone", Help: "test"})

	require.NoError(t, registry.RegisterGauge("svc", "gone", gauge))
	assert.True(t, registry.Unregister("svc", "gone"))
	assert.False(t, registry.Unregister("svc", "gone"))

	require.NoError(t, registry.RegisterGauge("svc", "gone", gauge))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_%d", i)
			c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "test"})
			assert.NoError(t, registry.RegisterCounter("svc", name, c))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		assert.True(t, gathered(t, registry, fmt.Sprintf("concurrent_%d", i)))
	}
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordValidation("MSG.HB", true, time.Millisecond)
	core.RecordValidation("MSG.HB", false, time.Millisecond)
	core.RecordValidation("MSG.HB", false, time.Millisecond)
	core.RecordMessagePublished("A.B")
	core.RecordMessageReceived("A.>", "valid")
	core.RecordPublishError("validation")
	core.RecordServiceStatus("heartbeat", 2)
	core.RecordHealthStatus("heartbeat", true)
	core.RecordError("heartbeat", "publish")
	core.RecordNATSStatus(true)
	core.RecordNATSReconnect()
	core.RecordCircuitBreakerState(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(core.ValidationsTotal.WithLabelValues("MSG.HB", "valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(core.ValidationsTotal.WithLabelValues("MSG.HB", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.MessagesPublished.WithLabelValues("A.B")))
	assert.Equal(t, 2.0, testutil.ToFloat64(core.ServiceStatus.WithLabelValues("heartbeat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSCircuitBreaker))

	assert.True(t, gathered(t, registry, "gmsec_specification_validations_total"))
}

func TestCoreMetrics_ValidationDuration(t *testing.T) {
	core := NewMetricsRegistry().CoreMetrics()
	for _, d := range []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond} {
		core.RecordValidation("MSG.LOG", true, d)
	}

	var m dto.Metric
	observer, ok := core.ValidationDuration.WithLabelValues("MSG.LOG").(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, observer.Write(&m))

	h := m.GetHistogram()
	require.NotNil(t, h)
	assert.Equal(t, uint64(3), h.GetSampleCount())
	assert.InDelta(t, 0.006, h.GetSampleSum(), 1e-9)
	require.Len(t, m.GetLabel(), 1)
	assert.Equal(t, "schema", m.GetLabel()[0].GetName())
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordMessagePublished("GMSEC.TEST")

	srv := NewServer("", "", registry)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "gmsec_messages_published_total"))

	health, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, 200, health.StatusCode)

	assert.Equal(t, "http://:9090/metrics", srv.Address())
	assert.NoError(t, srv.Stop(context.Background()))
}
