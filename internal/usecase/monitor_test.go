//go:build unit

package usecase_test

import (
	"context"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/temperature"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/pkg/logger"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/builder"
	"bloodbank-ops/tests/common/opstest"
	usecasemock "bloodbank-ops/tests/mock/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMonitor(env *opstest.Env, sensor usecase.Sensor, recorder usecase.Recorder) *usecase.Monitor {
	return usecase.NewMonitor(env.Registry(), sensor, env.Sink, recorder, env.Clock, logger.Discard(), env.Config.Monitor)
}

func TestMonitor_SampleOnce(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sensor := usecasemock.NewMockSensor(ctrl)
	recorder := usecasemock.NewMockRecorder(ctrl)
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	addFridge(t, env, "fridge-2", 10)

	sensor.EXPECT().Sample(gomock.Any(), "fridge-1").Return(4.2, nil)
	sensor.EXPECT().Sample(gomock.Any(), "fridge-2").Return(0.0, errs.New("sensor offline"))
	recorder.EXPECT().TemperatureObserved("fridge-1", 4.2)

	res, err := newMonitor(env, sensor, recorder).SampleOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sampled)
	assert.Equal(t, 1, res.Failed, "a broken sensor does not abort the pass")
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Anomalies)
	assert.Empty(t, env.Sink.All())

	loc, err := env.Registry().Location(ctx, "fridge-1")
	require.NoError(t, err)
	assert.Equal(t, 4.2, loc.CurrentTemperature())
}

func TestMonitor_UnsafeTemperature(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sensor := usecasemock.NewMockSensor(ctrl)
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	m := newMonitor(env, sensor, nil)

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Record(ctx, "fridge-1", 4))
		env.Clock.Add(5 * time.Minute)
	}
	sensor.EXPECT().Sample(gomock.Any(), "fridge-1").Return(9.0, nil)

	res, err := m.SampleOnce(ctx)
	require.NoError(t, err)
	require.Len(t, res.Violations["fridge-1"], 1)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, temperature.AnomalyFluctuation, res.Anomalies[0].Kind)
	assert.Equal(t, 5.0, res.Anomalies[0].Observed)

	alerts := env.Sink.OfKind(alert.KindTemperatureAnomaly)
	require.Len(t, alerts, 2, "one for the out-of-band reading, one for the fluctuation")
	for _, a := range alerts {
		assert.Equal(t, "fridge-1", a.Payload["locationId"])
		assert.Empty(t, a.HospitalID)
	}

	stats, err := m.TemperatureStats("fridge-1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, stats.Current)
	assert.Equal(t, 4.0, stats.Min)
	assert.Equal(t, 5, stats.Samples)
}

func TestMonitor_OverCapacityIsReported(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sensor := usecasemock.NewMockSensor(ctrl)
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 1)
	intake(t, env.Ledger(), unit.OPositive, "fridge-1", days(1))

	// written around the registry, as a restore from an old backup would
	stray := builder.NewUnitBuilder().With(func(b *builder.UnitBuilder) {
		b.LocationID = "fridge-1"
	}).BuildReconstructed()
	require.NoError(t, env.Store.SaveUnit(ctx, stray))

	sensor.EXPECT().Sample(gomock.Any(), "fridge-1").Return(4.0, nil)
	res, err := newMonitor(env, sensor, nil).SampleOnce(ctx)
	require.NoError(t, err)
	require.Len(t, res.Violations["fridge-1"], 1)
	assert.Equal(t, storage.ViolationOverCapacity, res.Violations["fridge-1"][0].Code)
	assert.Equal(t, storage.SeveritySev1, res.Violations["fridge-1"][0].Severity)

	violations := env.Sink.OfKind(alert.KindStorageViolation)
	require.Len(t, violations, 1)
	assert.Equal(t, "fridge-1", violations[0].Payload["locationId"])

	n, err := env.Store.CountUnitsInLocation(ctx, "fridge-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "over-capacity is reported, not repaired")
}

func TestMonitor_TemperatureStats(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	m := newMonitor(env, nil, nil)

	_, err := m.TemperatureStats("fridge-1")
	assert.True(t, errs.Is(err, errs.ErrNotFound))
	assert.True(t, errs.Is(m.Record(ctx, "missing", 4), errs.ErrNotFound))

	for _, v := range []float64{3, 5, 4} {
		require.NoError(t, m.Record(ctx, "fridge-1", v))
		env.Clock.Add(5 * time.Minute)
	}
	stats, err := m.TemperatureStats("fridge-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, stats.Current)
	assert.Equal(t, 4.0, stats.Average)
	assert.Equal(t, 3.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.Equal(t, 3, stats.Samples)
	assert.Empty(t, m.DetectAnomalies("fridge-1"))
}

func TestMonitor_PrunesRemovedLocations(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sensor := usecasemock.NewMockSensor(ctrl)
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	m := newMonitor(env, sensor, nil)

	require.NoError(t, m.Record(ctx, "fridge-1", 4))
	require.NoError(t, env.Registry().RemoveLocation(ctx, "fridge-1"))

	res, err := m.SampleOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Sampled)
	_, err = m.TemperatureStats("fridge-1")
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}
