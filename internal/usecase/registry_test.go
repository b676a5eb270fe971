//go:build unit

package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/builder"
	"bloodbank-ops/tests/common/opstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Locations(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		env := opstest.NewEnv(t)
		addFridge(t, env, "fridge-1", 10)
		_, err := env.Registry().AddLocation(ctx, builder.NewLocationBuilder().BuildSpec())
		assert.True(t, errs.Is(err, errs.ErrConflict))
	})

	t.Run("freezer target must be cold enough", func(t *testing.T) {
		env := opstest.NewEnv(t)
		spec := builder.NewLocationBuilder().Freezer().With(func(b *builder.LocationBuilder) {
			b.TargetTemperature = -5
		}).BuildSpec()
		_, err := env.Registry().AddLocation(ctx, spec)
		assert.True(t, errs.Is(err, errs.ErrValidation))
	})

	t.Run("only empty locations can be removed", func(t *testing.T) {
		env := opstest.NewEnv(t)
		reg := env.Registry()
		addFridge(t, env, "fridge-1", 10)
		u := intake(t, env.Ledger(), unit.APositive, "fridge-1", days(1))

		assert.True(t, errs.Is(reg.RemoveLocation(ctx, "fridge-1"), errs.ErrNotEmpty))

		_, err := reg.RemoveUnit(ctx, "fridge-1", u.ID())
		require.NoError(t, err)
		require.NoError(t, reg.RemoveLocation(ctx, "fridge-1"))

		_, err = reg.Location(ctx, "fridge-1")
		assert.True(t, errs.Is(err, errs.ErrNotFound))
		assert.True(t, errs.Is(reg.RemoveLocation(ctx, "fridge-1"), errs.ErrNotFound))
	})

	t.Run("locations are listed by id", func(t *testing.T) {
		env := opstest.NewEnv(t)
		addFridge(t, env, "fridge-b", 1)
		addFridge(t, env, "fridge-a", 1)
		locs, err := env.Registry().Locations(ctx)
		require.NoError(t, err)
		require.Len(t, locs, 2)
		assert.Equal(t, "fridge-a", locs[0].ID())
	})
}

func TestRegistry_FreezerCapacity(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	reg := env.Registry()
	ledger := env.Ledger()
	freezer := addLocation(t, env, builder.NewLocationBuilder().Freezer())
	require.Equal(t, -20.0, freezer.TargetTemperature())

	plasma := func() usecase.IntakeRequest {
		req := intakeReq(unit.ABNegative, "freezer-1", days(3))
		req.Component = unit.Plasma
		return req
	}

	first, err := ledger.Intake(ctx, plasma())
	require.NoError(t, err)
	_, err = ledger.Intake(ctx, plasma())
	require.NoError(t, err)

	free, err := reg.AvailableCapacity(ctx, "freezer-1")
	require.NoError(t, err)
	assert.Zero(t, free)

	_, err = ledger.Intake(ctx, plasma())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCapacityExceeded))

	units, err := env.Store.ListUnits(ctx, unit.Filter{HospitalID: "hospital-1"})
	require.NoError(t, err)
	assert.Len(t, units, 2, "a rejected unit is not stored")

	removed, err := reg.RemoveUnit(ctx, "freezer-1", first.ID())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), removed.ID())

	_, err = ledger.Intake(ctx, plasma())
	require.NoError(t, err)
	free, err = reg.AvailableCapacity(ctx, "freezer-1")
	require.NoError(t, err)
	assert.Zero(t, free)
}

func TestRegistry_ConcurrentIntakeRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 5)
	ledger := env.Ledger()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Intake(ctx, intakeReq(unit.OPositive, "fridge-1", days(1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errs.Is(err, errs.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, full)
	n, err := env.Store.CountUnitsInLocation(ctx, "fridge-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRegistry_Units(t *testing.T) {
	ctx := context.Background()

	t.Run("adding a stored unit twice is a conflict", func(t *testing.T) {
		env := opstest.NewEnv(t)
		addFridge(t, env, "fridge-1", 10)
		addFridge(t, env, "fridge-2", 10)
		u := intake(t, env.Ledger(), unit.APositive, "fridge-1", days(1))

		err := env.Registry().AddUnit(ctx, "fridge-2", u)
		assert.True(t, errs.Is(err, errs.ErrConflict))
	})

	t.Run("terminal units cannot be stored", func(t *testing.T) {
		env := opstest.NewEnv(t)
		addFridge(t, env, "fridge-1", 10)
		u := builder.NewUnitBuilder().With(func(b *builder.UnitBuilder) { b.Status = unit.StatusExpired }).BuildReconstructed()
		assert.True(t, errs.Is(env.Registry().AddUnit(ctx, "fridge-1", u), errs.ErrValidation))
	})

	t.Run("move checks the target capacity", func(t *testing.T) {
		env := opstest.NewEnv(t)
		reg := env.Registry()
		addFridge(t, env, "fridge-1", 10)
		addFridge(t, env, "fridge-2", 1)
		a := intake(t, env.Ledger(), unit.APositive, "fridge-1", days(1))
		b := intake(t, env.Ledger(), unit.APositive, "fridge-1", days(1))

		env.Sink.Reset()
		moved, err := reg.MoveUnit(ctx, a.ID(), "fridge-2")
		require.NoError(t, err)
		assert.Equal(t, "fridge-2", moved.LocationID())

		changed := env.Sink.OfKind(alert.KindInventoryChanged)
		require.Len(t, changed, 1)
		assert.Equal(t, "move", changed[0].Payload["action"])
		assert.Equal(t, "fridge-1", changed[0].Payload["from"])

		_, err = reg.MoveUnit(ctx, b.ID(), "fridge-2")
		assert.True(t, errs.Is(err, errs.ErrCapacityExceeded))

		found, err := reg.FindUnit(ctx, b.ID())
		require.NoError(t, err)
		assert.Equal(t, "fridge-1", found.LocationID(), "a failed move leaves the unit in place")
	})

	t.Run("move to the same location is a no-op", func(t *testing.T) {
		env := opstest.NewEnv(t)
		addFridge(t, env, "fridge-1", 1)
		u := intake(t, env.Ledger(), unit.APositive, "fridge-1", days(1))
		moved, err := env.Registry().MoveUnit(ctx, u.ID(), "fridge-1")
		require.NoError(t, err)
		assert.Equal(t, "fridge-1", moved.LocationID())
	})

	t.Run("removing from the wrong location", func(t *testing.T) {
		env := opstest.NewEnv(t)
		addFridge(t, env, "fridge-1", 10)
		addFridge(t, env, "fridge-2", 10)
		u := intake(t, env.Ledger(), unit.APositive, "fridge-1", days(1))
		_, err := env.Registry().RemoveUnit(ctx, "fridge-2", u.ID())
		assert.True(t, errs.Is(err, errs.ErrNotFound))
	})

	t.Run("unplaced units are not found in storage", func(t *testing.T) {
		env := opstest.NewEnv(t)
		u := builder.NewUnitBuilder().BuildReconstructed()
		require.NoError(t, env.Store.SaveUnit(ctx, u))
		_, err := env.Registry().FindUnit(ctx, u.ID())
		assert.True(t, errs.Is(err, errs.ErrNotFound))
	})
}

func TestRegistry_UnitsNearingExpiration(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	ledger := env.Ledger()

	soon := intake(t, ledger, unit.APositive, "fridge-1", days(40))
	sooner := intake(t, ledger, unit.BPositive, "fridge-1", days(41))
	intake(t, ledger, unit.OPositive, "fridge-1", days(10))

	got, err := env.Registry().UnitsNearingExpiration(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{sooner.ID(), soon.ID()}, []string{got[0].ID(), got[1].ID()})

	_, err = env.Registry().UnitsNearingExpiration(ctx, -1)
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func TestRegistry_ValidateStorageConditions(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	reg := env.Registry()
	addFridge(t, env, "fridge-1", 10)
	addFridge(t, env, "fridge-2", 10)

	got, err := reg.ValidateStorageConditions(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	env.Clock.Add(time.Minute)
	loc, err := reg.RecordTemperature(ctx, "fridge-2", 9)
	require.NoError(t, err)
	assert.Equal(t, 9.0, loc.CurrentTemperature())

	got, err = reg.ValidateStorageConditions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotEmpty(t, got["fridge-2"])
	assert.Equal(t, storage.SeverityCritical, got["fridge-2"][0].Severity)
}
