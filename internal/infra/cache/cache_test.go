//go:build unit

package cache_test

import (
	"sync"
	"testing"
	"time"

	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type countingObserver struct {
	mu     sync.Mutex
	hits   map[cache.Class]int
	misses map[cache.Class]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[cache.Class]int{}, misses: map[cache.Class]int{}}
}

func (o *countingObserver) CacheHit(c cache.Class) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits[c]++
}

func (o *countingObserver) CacheMiss(c cache.Class) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses[c]++
}

func newCache(t *testing.T, obs cache.Observer) (*cache.Cache, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(t0)
	c, err := cache.New(config.NewTestConfig().Cache, clk, obs)
	require.NoError(t, err)
	return c, clk
}

func TestCache_TTL(t *testing.T) {
	cases := []struct {
		class cache.Class
		ttl   time.Duration
	}{
		{cache.ClassInventory, 60 * time.Second},
		{cache.ClassDonorSearch, 300 * time.Second},
		{cache.ClassStatistics, 900 * time.Second},
		{cache.ClassForecast, time.Hour},
	}
	for _, tc := range cases {
		t.Run(string(tc.class), func(t *testing.T) {
			c, clk := newCache(t, nil)
			key := cache.NewKey(tc.class, "hospital-1")
			c.Set(key, 42)

			clk.Add(tc.ttl - time.Second)
			v, ok := c.Get(key)
			require.True(t, ok)
			assert.Equal(t, 42, v)

			clk.Add(time.Second)
			_, ok = c.Get(key)
			assert.False(t, ok, "entry expires exactly at its TTL")
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCache_Keys(t *testing.T) {
	c, _ := newCache(t, nil)

	c.Set(cache.NewKey(cache.ClassStatistics, "hospital-1", "30"), "30 days")
	c.Set(cache.NewKey(cache.ClassStatistics, "hospital-1", "90"), "90 days")

	v, ok := c.Get(cache.NewKey(cache.ClassStatistics, "hospital-1", "30"))
	require.True(t, ok)
	assert.Equal(t, "30 days", v)
	v, ok = c.Get(cache.NewKey(cache.ClassStatistics, "hospital-1", "90"))
	require.True(t, ok)
	assert.Equal(t, "90 days", v)

	_, ok = c.Get(cache.NewKey(cache.ClassStatistics, "hospital-2", "30"))
	assert.False(t, ok)
	_, ok = c.Get(cache.NewKey(cache.ClassForecast, "hospital-1", "30"))
	assert.False(t, ok, "classes do not share entries")

	assert.NotEqual(t, cache.NewKey(cache.ClassForecast, "h", "a", "b"), cache.NewKey(cache.ClassForecast, "h", "ab"))
}

func TestCache_Invalidation(t *testing.T) {
	t.Run("invalidate drops every params variant", func(t *testing.T) {
		c, _ := newCache(t, nil)
		c.Set(cache.NewKey(cache.ClassForecast, "hospital-1", "7"), 1)
		c.Set(cache.NewKey(cache.ClassForecast, "hospital-1", "14"), 2)
		c.Set(cache.NewKey(cache.ClassForecast, "hospital-2", "7"), 3)

		c.Invalidate(cache.ClassForecast, "hospital-1")

		assert.Equal(t, 1, c.Len())
		_, ok := c.Get(cache.NewKey(cache.ClassForecast, "hospital-2", "7"))
		assert.True(t, ok)
	})

	t.Run("hospital invalidation keeps donor search entries", func(t *testing.T) {
		c, _ := newCache(t, nil)
		for _, class := range []cache.Class{cache.ClassInventory, cache.ClassStatistics, cache.ClassForecast, cache.ClassDonorSearch} {
			c.Set(cache.NewKey(class, "hospital-1"), string(class))
		}

		c.InvalidateHospital("hospital-1")

		for _, class := range cache.HospitalClasses {
			_, ok := c.Get(cache.NewKey(class, "hospital-1"))
			assert.False(t, ok, class)
		}
		_, ok := c.Get(cache.NewKey(cache.ClassDonorSearch, "hospital-1"))
		assert.True(t, ok)
	})

	t.Run("a value computed before an invalidation is not stored", func(t *testing.T) {
		c, _ := newCache(t, nil)
		key := cache.NewKey(cache.ClassInventory, "hospital-1")

		gen := c.Generation(cache.ClassInventory, "hospital-1")
		c.InvalidateHospital("hospital-1")
		assert.False(t, c.SetIfCurrent(key, "stale", gen))
		_, ok := c.Get(key)
		assert.False(t, ok)

		gen = c.Generation(cache.ClassInventory, "hospital-1")
		assert.True(t, c.SetIfCurrent(key, "fresh", gen))
		v, ok := c.Get(key)
		require.True(t, ok)
		assert.Equal(t, "fresh", v)
	})

	t.Run("other entities keep their generation", func(t *testing.T) {
		c, _ := newCache(t, nil)
		gen := c.Generation(cache.ClassInventory, "hospital-2")
		c.InvalidateHospital("hospital-1")
		assert.True(t, c.SetIfCurrent(cache.NewKey(cache.ClassInventory, "hospital-2"), 1, gen))
	})
}

func TestCache_Bounded(t *testing.T) {
	cfg := config.NewTestConfig().Cache
	cfg.MaxEntries = 2
	c, err := cache.New(cfg, clock.NewMockClock(t0), nil)
	require.NoError(t, err)

	for _, id := range []string{"h1", "h2", "h3"} {
		c.Set(cache.NewKey(cache.ClassInventory, id), id)
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(cache.NewKey(cache.ClassInventory, "h1"))
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestCache_Observer(t *testing.T) {
	obs := newCountingObserver()
	c, clk := newCache(t, obs)
	key := cache.NewKey(cache.ClassInventory, "hospital-1")

	c.Get(key)
	c.Set(key, 1)
	c.Get(key)
	c.Get(key)
	clk.Add(time.Minute)
	c.Get(key)

	assert.Equal(t, 2, obs.hits[cache.ClassInventory])
	assert.Equal(t, 2, obs.misses[cache.ClassInventory])
}
