// Package cache holds derived read models (inventory levels, statistics,
// forecasts) with a TTL per class. It never computes values itself.
package cache

import (
	"strings"
	"sync"
	"time"

	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

type Class string

const (
	ClassInventory   Class = "inventory"
	ClassDonorSearch Class = "donor_search"
	ClassStatistics  Class = "statistics"
	ClassForecast    Class = "forecast"
)

// HospitalClasses are dropped together whenever a hospital's inventory changes.
var HospitalClasses = []Class{ClassInventory, ClassStatistics, ClassForecast}

type Key struct {
	Class      Class
	EntityID   string
	ParamsHash uint64
}

// NewKey hashes params so calls with different arguments for the same entity
// get distinct entries.
func NewKey(class Class, entityID string, params ...string) Key {
	var h uint64
	if len(params) > 0 {
		h = xxhash.Sum64String(strings.Join(params, "\x1f"))
	}
	return Key{Class: class, EntityID: entityID, ParamsHash: h}
}

type Observer interface {
	CacheHit(class Class)
	CacheMiss(class Class)
}

type entry struct {
	value     any
	expiresAt time.Time
}

type scope struct {
	class    Class
	entityID string
}

type Cache struct {
	mu       sync.Mutex
	clock    clock.Clock
	ttl      map[Class]time.Duration
	entries  map[Class]*lru.Cache[Key, entry]
	gens     map[scope]uint64
	observer Observer
}

func New(cfg config.CacheConfig, clk clock.Clock, observer Observer) (*Cache, error) {
	c := &Cache{
		clock: clk,
		ttl: map[Class]time.Duration{
			ClassInventory:   cfg.InventoryTTL,
			ClassDonorSearch: cfg.DonorSearchTTL,
			ClassStatistics:  cfg.StatisticsTTL,
			ClassForecast:    cfg.ForecastTTL,
		},
		entries:  make(map[Class]*lru.Cache[Key, entry], 4),
		gens:     make(map[scope]uint64),
		observer: observer,
	}
	for class := range c.ttl {
		l, err := lru.New[Key, entry](cfg.MaxEntries)
		if err != nil {
			return nil, errs.Wrapf(err, "create %s cache", class)
		}
		c.entries[class] = l
	}
	return c, nil
}

// Get returns the cached value if present and not expired.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.entries[key.Class]
	if !ok {
		return nil, false
	}
	e, ok := l.Get(key)
	if ok && !c.clock.Now().Before(e.expiresAt) {
		l.Remove(key)
		ok = false
	}
	if c.observer != nil {
		if ok {
			c.observer.CacheHit(key.Class)
		} else {
			c.observer.CacheMiss(key.Class)
		}
	}
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// Generation is read before computing a value and handed back to SetIfCurrent.
func (c *Cache) Generation(class Class, entityID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[scope{class, entityID}]
}

// SetIfCurrent stores value only if no invalidation happened since gen was
// read. It reports whether the value was stored.
func (c *Cache) SetIfCurrent(key Key, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[scope{key.Class, key.EntityID}] != gen {
		return false
	}
	c.setLocked(key, value)
	return true
}

// Invalidate drops every entry for class and entityID regardless of params.
func (c *Cache) Invalidate(class Class, entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(class, entityID)
}

// InvalidateHospital drops inventory, statistics and forecast entries for a
// hospital in a single critical section.
func (c *Cache) InvalidateHospital(hospitalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, class := range HospitalClasses {
		c.invalidateLocked(class, hospitalID)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.entries {
		n += l.Len()
	}
	return n
}

func (c *Cache) setLocked(key Key, value any) {
	l, ok := c.entries[key.Class]
	if !ok {
		return
	}
	l.Add(key, entry{value: value, expiresAt: c.clock.Now().Add(c.ttl[key.Class])})
}

func (c *Cache) invalidateLocked(class Class, entityID string) {
	c.gens[scope{class, entityID}]++
	l, ok := c.entries[class]
	if !ok {
		return
	}
	for _, k := range l.Keys() {
		if k.EntityID == entityID {
			l.Remove(k)
		}
	}
}
