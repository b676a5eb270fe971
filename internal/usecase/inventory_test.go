//go:build unit

package usecase_test

import (
	"context"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/builder"
	"bloodbank-ops/tests/common/opstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInventory(env *opstest.Env) *usecase.Inventory {
	return usecase.NewInventory(env.Deps, usecase.NewForecaster(env.Deps, usecase.NewRandSource(1)), env.Config.Monitor.RotationThresholdDays)
}

func TestInventory_Levels(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 20)
	ledger := env.Ledger()

	intake(t, ledger, unit.APositive, "fridge-1", days(1))
	intake(t, ledger, unit.APositive, "fridge-1", days(38))
	reserved := intake(t, ledger, unit.APositive, "fridge-1", days(2))
	_, err := ledger.MarkStatus(ctx, reserved.ID(), unit.StatusReserved)
	require.NoError(t, err)

	expired := builder.NewUnitBuilder().With(func(b *builder.UnitBuilder) {
		b.BloodType = unit.APositive
		b.DonatedAt = builder.DefaultNow.Add(-days(50))
	}).BuildReconstructed()
	require.NoError(t, env.Store.SaveUnit(ctx, expired))

	levels, err := newInventory(env).Levels(ctx, "hospital-1")
	require.NoError(t, err)
	require.Len(t, levels.Types, len(unit.AllBloodTypes))

	a := levels.For(unit.APositive)
	assert.Equal(t, 2, a.Available, "expired units are not counted")
	assert.Equal(t, 1, a.Reserved)
	assert.Equal(t, 1, a.ExpiringSoon)
	assert.True(t, a.Low)
	assert.Zero(t, levels.For(unit.ONegative).Available)
}

func TestInventory_NoStaleReads(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 20)
	ledger := env.Ledger()
	inv := newInventory(env)

	intake(t, ledger, unit.OPositive, "fridge-1", days(1))
	levels, err := inv.Levels(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Equal(t, 1, levels.For(unit.OPositive).Available)
	_, cached := env.Cache.Get(cache.NewKey(cache.ClassInventory, "hospital-1"))
	require.True(t, cached)

	u := intake(t, ledger, unit.OPositive, "fridge-1", days(1))
	levels, err = inv.Levels(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Equal(t, 2, levels.For(unit.OPositive).Available)

	require.NoError(t, ledger.Dispose(ctx, u.ID()))
	levels, err = inv.Levels(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Equal(t, 1, levels.For(unit.OPositive).Available)

	env.Clock.Add(env.Config.Cache.InventoryTTL)
	_, cached = env.Cache.Get(cache.NewKey(cache.ClassInventory, "hospital-1"))
	assert.False(t, cached, "entries expire after their TTL")
}

func TestInventory_Recommendations(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 20)
	ledger := env.Ledger()
	for i := 0; i < 9; i++ {
		intake(t, ledger, unit.OPositive, "fridge-1", days(1))
	}
	for i := 0; i < 7; i++ {
		intake(t, ledger, unit.ANegative, "fridge-1", days(1))
	}

	history := builder.NewEventLog("hospital-1")
	history.Request(unit.OPositive, 5, event.UrgencyRoutine, builder.DefaultNow.Add(-days(3)))
	history.Request(unit.OPositive, 10, event.UrgencyRoutine, builder.DefaultNow.Add(-days(2)))
	history.Request(unit.OPositive, 5, event.UrgencyRoutine, builder.DefaultNow.Add(-days(1)))
	history.Request(unit.ANegative, 6, event.UrgencyRoutine, builder.DefaultNow.Add(-days(2)))
	history.Request(unit.ANegative, 6, event.UrgencyRoutine, builder.DefaultNow.Add(-days(1)))
	for _, e := range history.Events {
		require.NoError(t, env.Store.AppendEvent(ctx, e))
	}
	env.Clock.Add(time.Minute)

	recs, err := newInventory(env).Recommendations(ctx, "hospital-1")
	require.NoError(t, err)
	require.Len(t, recs, len(unit.AllBloodTypes))

	byType := map[unit.BloodType]usecase.Recommendation{}
	for _, r := range recs {
		byType[r.BloodType] = r
	}

	o := byType[unit.OPositive]
	assert.Equal(t, 8, o.MinimumLevel)
	assert.Equal(t, 10, o.OptimalLevel)
	assert.Equal(t, 1, o.Shortfall)
	assert.Equal(t, usecase.StockBelowOptimal, o.Status)

	a := byType[unit.ANegative]
	assert.Equal(t, 8, a.MinimumLevel)
	assert.Equal(t, usecase.StockCritical, a.Status)

	idle := byType[unit.BPositive]
	assert.Zero(t, idle.OptimalLevel)
	assert.Equal(t, usecase.StockHealthy, idle.Status)
}

func TestForecaster_Cached(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	f := usecase.NewForecaster(env.Deps, usecase.NewRandSource(3))

	history := builder.NewEventLog("hospital-1")
	history.Request(unit.OPositive, 4, event.UrgencyRoutine, builder.DefaultNow.Add(-days(2)))
	history.Request(unit.OPositive, 4, event.UrgencyRoutine, builder.DefaultNow.Add(-days(1)))
	for _, e := range history.Events {
		require.NoError(t, env.Store.AppendEvent(ctx, e))
	}

	first, err := f.Forecast(ctx, "hospital-1")
	require.NoError(t, err)
	p, ok := first.For(unit.OPositive)
	require.True(t, ok)
	assert.Equal(t, 4.0, p.PredictedDemand)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Len(t, p.NextDays, 7)

	second, err := f.Forecast(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "jittered projections come from the cache")

	requests := usecase.NewRequests(env.Deps)
	_, err = requests.Raise(ctx, "hospital-1", unit.OPositive, 10, event.UrgencyRoutine)
	require.NoError(t, err)
	env.Clock.Add(time.Minute)

	third, err := f.Forecast(ctx, "hospital-1")
	require.NoError(t, err)
	p, _ = third.For(unit.OPositive)
	assert.Equal(t, 3, p.DataPoints, "a new request invalidates the forecast")
}
