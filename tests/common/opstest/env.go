//go:build unit || integration

// Package opstest wires the inventory use cases against the in-memory store
// with a fixed clock.
package opstest

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/infra/health"
	"bloodbank-ops/internal/infra/store/memory"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/logger"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/builder"

	"github.com/stretchr/testify/require"
)

type Env struct {
	Config config.Config
	Clock  *clock.MockClock
	Store  *memory.Store
	Health *health.Manager
	Cache  *cache.Cache
	Sink   *Sink
	Deps   *usecase.Deps
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	cfg := config.NewTestConfig()
	clk := clock.NewMockClock(builder.DefaultNow)
	log := logger.Discard()

	store := memory.New(log)
	manager := health.NewManager(store, cfg.Store, log,
		health.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, manager.Connect(context.Background(), ""))
	t.Cleanup(func() { _ = manager.Disconnect(context.Background()) })

	c, err := cache.New(cfg.Cache, clk, nil)
	require.NoError(t, err)

	sink := &Sink{}
	return &Env{
		Config: cfg,
		Clock:  clk,
		Store:  store,
		Health: manager,
		Cache:  c,
		Sink:   sink,
		Deps: &usecase.Deps{
			Store:     store,
			Guard:     manager,
			Cache:     c,
			Sink:      sink,
			Clock:     clk,
			Logger:    log,
			Locks:     usecase.NewLocks(),
			Inventory: cfg.Inventory,
		},
	}
}

func (e *Env) Registry() *usecase.Registry {
	return usecase.NewRegistry(e.Deps)
}

func (e *Env) Ledger() *usecase.Ledger {
	return usecase.NewLedger(e.Deps, e.Registry())
}

// Sink collects published alerts.
type Sink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (s *Sink) Publish(a alert.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

func (s *Sink) All() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Alert(nil), s.alerts...)
}

func (s *Sink) OfKind(kind alert.Kind) []alert.Alert {
	var out []alert.Alert
	for _, a := range s.All() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
}
