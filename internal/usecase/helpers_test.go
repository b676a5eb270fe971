//go:build unit

package usecase_test

import (
	"context"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/builder"
	"bloodbank-ops/tests/common/opstest"

	"github.com/stretchr/testify/require"
)

func addLocation(t *testing.T, env *opstest.Env, b *builder.LocationBuilder) *storage.Location {
	t.Helper()
	loc, err := env.Registry().AddLocation(context.Background(), b.BuildSpec())
	require.NoError(t, err)
	return loc
}

func addFridge(t *testing.T, env *opstest.Env, id string, capacity int) *storage.Location {
	t.Helper()
	return addLocation(t, env, builder.NewLocationBuilder().With(func(b *builder.LocationBuilder) {
		b.ID = id
		b.Capacity = capacity
	}))
}

func intakeReq(bt unit.BloodType, locationID string, donatedAgo time.Duration) usecase.IntakeRequest {
	return usecase.IntakeRequest{
		BloodType:  bt,
		Component:  unit.RedCells,
		DonorID:    "donor-0001",
		HospitalID: "hospital-1",
		LocationID: locationID,
		DonatedAt:  builder.DefaultNow.Add(-donatedAgo),
	}
}

func intake(t *testing.T, l *usecase.Ledger, bt unit.BloodType, locationID string, donatedAgo time.Duration) *unit.Unit {
	t.Helper()
	u, err := l.Intake(context.Background(), intakeReq(bt, locationID, donatedAgo))
	require.NoError(t, err)
	return u
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
