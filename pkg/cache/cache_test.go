package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/metric"
)

func TestLRU_BasicOperations(t *testing.T) {
	c, err := NewLRU[string](4)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	created, err := c.Set("a", "1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("a", "2")
	require.NoError(t, err)
	assert.False(t, created)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 0, c.Size())

	assert.Equal(t, int64(1), c.Stats().Hits())
	assert.Equal(t, int64(1), c.Stats().Misses())
	assert.InDelta(t, 0.5, c.Stats().HitRatio(), 1e-9)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Get("a")
	_, _ = c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestLRU_InvalidInput(t *testing.T) {
	_, err := NewLRU[int](0)
	assert.Error(t, err)

	c, err := NewLRU[int](1)
	require.NoError(t, err)
	_, err = c.Set("", 1)
	assert.Error(t, err)
}

func TestLRU_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewLRU[int](2, WithMetrics(registry, "patterns"))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("b")

	lc := c.(*lruCache[int])
	assert.Equal(t, 1.0, testutil.ToFloat64(lc.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(lc.lookups.WithLabelValues("miss")))

	_, _ = c.Set("b", 2)
	_, _ = c.Set("c", 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(lc.evictions))
	assert.Equal(t, 2.0, testutil.ToFloat64(lc.entries))
	c.Delete("c")
	assert.Equal(t, 1.0, testutil.ToFloat64(lc.entries))

	_, err = NewLRU[int](2, WithMetrics(registry, "patterns"))
	assert.Error(t, err, "duplicate component name")
}

func TestLRU_Concurrent(t *testing.T) {
	c, err := NewLRU[int](16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", (g*100+i)%32)
				_, _ = c.Set(key, i)
				_, _ = c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 16)
}
