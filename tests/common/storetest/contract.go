//go:build unit || integration

// Package storetest is the behaviour every store driver has to share.
package storetest

import (
	"context"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra/converter"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/builder"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a connected, empty store.
type Factory func(t *testing.T) usecase.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("units", func(t *testing.T) { units(t, newStore(t)) })
	t.Run("locations", func(t *testing.T) { locations(t, newStore(t)) })
	t.Run("events", func(t *testing.T) { events(t, newStore(t)) })
	t.Run("report jobs", func(t *testing.T) { jobs(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { transactions(t, newStore(t)) })
}

func assertUnit(t *testing.T, want, got *unit.Unit) {
	t.Helper()
	if diff := cmp.Diff(converter.UnitToRecord(want), converter.UnitToRecord(got)); diff != "" {
		t.Errorf("unit mismatch (-want +got):\n%s", diff)
	}
}

func units(t *testing.T, s usecase.Store) {
	ctx := context.Background()

	placed := builder.NewUnitBuilder().With(func(b *builder.UnitBuilder) { b.LocationID = "fridge-1" }).BuildReconstructed()
	loose := builder.NewUnitBuilder().With(func(b *builder.UnitBuilder) {
		b.BloodType = unit.ANegative
		b.HospitalID = "hospital-2"
	}).BuildReconstructed()

	require.NoError(t, s.SaveUnit(ctx, placed))
	require.NoError(t, s.SaveUnit(ctx, loose))

	err := s.SaveUnit(ctx, placed)
	assert.True(t, errs.Is(err, errs.ErrConflict), "duplicate insert: %v", err)

	got, err := s.GetUnit(ctx, placed.ID())
	require.NoError(t, err)
	assertUnit(t, placed, got)

	_, err = s.GetUnit(ctx, "missing")
	assert.True(t, errs.Is(err, errs.ErrNotFound), "%v", err)

	n, err := s.CountUnitsInLocation(ctx, "fridge-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Run("update", func(t *testing.T) {
		require.NoError(t, got.TransitionTo(unit.StatusReserved))
		got.PlaceIn("fridge-2")
		require.NoError(t, s.UpdateUnit(ctx, got))

		again, err := s.GetUnit(ctx, placed.ID())
		require.NoError(t, err)
		assert.Equal(t, unit.StatusReserved, again.Status())
		assert.Equal(t, "fridge-2", again.LocationID())

		missing := builder.NewUnitBuilder().BuildReconstructed()
		assert.True(t, errs.Is(s.UpdateUnit(ctx, missing), errs.ErrNotFound))
	})

	t.Run("list with filters", func(t *testing.T) {
		all, err := s.ListUnits(ctx, unit.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		byHospital, err := s.ListUnits(ctx, unit.Filter{HospitalID: "hospital-2"})
		require.NoError(t, err)
		require.Len(t, byHospital, 1)
		assert.Equal(t, loose.ID(), byHospital[0].ID())

		placedOnly, err := s.ListUnits(ctx, unit.Filter{PlacedOnly: true})
		require.NoError(t, err)
		require.Len(t, placedOnly, 1)
		assert.Equal(t, placed.ID(), placedOnly[0].ID())

		available, err := s.ListUnits(ctx, unit.Filter{Statuses: []unit.Status{unit.StatusAvailable}})
		require.NoError(t, err)
		require.Len(t, available, 1)
		assert.Equal(t, loose.ID(), available[0].ID())

		byType, err := s.ListUnits(ctx, unit.Filter{BloodType: unit.ANegative})
		require.NoError(t, err)
		assert.Len(t, byType, 1)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteUnit(ctx, loose.ID()))
		assert.True(t, errs.Is(s.DeleteUnit(ctx, loose.ID()), errs.ErrNotFound))
		_, err := s.GetUnit(ctx, loose.ID())
		assert.True(t, errs.Is(err, errs.ErrNotFound))
	})
}

func locations(t *testing.T, s usecase.Store) {
	ctx := context.Background()

	fridge, err := builder.NewLocationBuilder().BuildDomain()
	require.NoError(t, err)
	freezer, err := builder.NewLocationBuilder().Freezer().BuildDomain()
	require.NoError(t, err)

	require.NoError(t, s.CreateLocation(ctx, freezer))
	require.NoError(t, s.CreateLocation(ctx, fridge))
	assert.True(t, errs.Is(s.CreateLocation(ctx, fridge), errs.ErrConflict))

	list, err := s.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "freezer-1", list[0].ID())
	assert.Equal(t, "fridge-1", list[1].ID())

	fridge.RecordTemperature(5.5, builder.DefaultNow.Add(time.Minute))
	require.NoError(t, s.UpdateLocation(ctx, fridge))

	got, err := s.GetLocation(ctx, fridge.ID())
	require.NoError(t, err)
	if diff := cmp.Diff(converter.LocationToRecord(fridge), converter.LocationToRecord(got)); diff != "" {
		t.Errorf("location mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.DeleteLocation(ctx, fridge.ID()))
	assert.True(t, errs.Is(s.DeleteLocation(ctx, fridge.ID()), errs.ErrNotFound))
	_, err = s.GetLocation(ctx, fridge.ID())
	assert.True(t, errs.Is(err, errs.ErrNotFound))

	gone, err := storage.NewLocation(storage.Spec{ID: "gone", Name: "Gone", Kind: storage.KindRefrigerator, TargetTemperature: 4, Capacity: 1}, builder.DefaultNow)
	require.NoError(t, err)
	assert.True(t, errs.Is(s.UpdateLocation(ctx, gone), errs.ErrNotFound))
}

func events(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	now := builder.DefaultNow

	log := builder.NewEventLog("hospital-1").
		Donation(unit.OPositive, "donor-a", now.Add(-2*time.Hour)).
		Expired(unit.OPositive, 2, now.Add(-30*time.Minute))
	req := log.Request(unit.OPositive, 1, event.UrgencyCritical, now.Add(-time.Hour))
	log.Fulfill(req, now)
	log.Events = append(log.Events, builder.NewEventLog("hospital-2").Donation(unit.BNegative, "donor-b", now).Events...)

	for _, e := range log.Events {
		require.NoError(t, s.AppendEvent(ctx, e))
	}

	all, err := s.ListEvents(ctx, event.Query{HospitalID: "hospital-1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].OccurredAt.Before(all[i-1].OccurredAt), "events in occurrence order")
	}
	assert.Equal(t, event.ReasonDonation, all[0].Reason)
	assert.Equal(t, "donor-a", all[0].DonorID)

	window, err := s.ListEvents(ctx, event.Query{HospitalID: "hospital-1", From: now.Add(-time.Hour), To: now})
	require.NoError(t, err)
	assert.Len(t, window, 2, "from inclusive, to exclusive")

	byRequest, err := s.ListEvents(ctx, event.Query{RequestID: req.RequestID})
	require.NoError(t, err)
	require.Len(t, byRequest, 2)
	assert.Equal(t, event.KindEmergencyRequest, byRequest[0].Kind)
	assert.Equal(t, event.KindRequestFulfilled, byRequest[1].Kind)
	assert.Len(t, byRequest[1].UnitIDs, 1)

	requests, err := s.ListEvents(ctx, event.Query{Kinds: event.RequestKinds})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func jobs(t *testing.T, s usecase.Store) {
	ctx := context.Background()

	daily, err := report.NewJob("hospital-2", report.Daily, builder.DefaultNow)
	require.NoError(t, err)
	weekly, err := report.NewJob("hospital-1", report.Weekly, builder.DefaultNow)
	require.NoError(t, err)
	require.NoError(t, s.SaveJob(ctx, daily))
	require.NoError(t, s.SaveJob(ctx, weekly))

	weekly.Cadence = report.Monthly
	weekly.Record(report.PerformanceReport{
		HospitalID:  "hospital-1",
		GeneratedAt: builder.DefaultNow,
		CurrentMonth: report.HospitalStats{
			HospitalID:     "hospital-1",
			PeriodDays:     30,
			TotalDonations: 4,
		},
	})
	require.NoError(t, s.SaveJob(ctx, weekly), "save is an upsert")

	got, err := s.GetJob(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Equal(t, report.Monthly, got.Cadence)
	require.NotNil(t, got.LastReport)
	assert.Equal(t, 4, got.LastReport.CurrentMonth.TotalDonations)
	assert.True(t, got.LastGeneratedAt.Equal(builder.DefaultNow))

	list, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "hospital-1", list[0].HospitalID)
	assert.Equal(t, "hospital-2", list[1].HospitalID)

	require.NoError(t, s.DeleteJob(ctx, "hospital-2"))
	assert.True(t, errs.Is(s.DeleteJob(ctx, "hospital-2"), errs.ErrNotFound))
	_, err = s.GetJob(ctx, "hospital-2")
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func transactions(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	now := builder.DefaultNow

	kept := builder.NewUnitBuilder().BuildReconstructed()
	require.NoError(t, s.SaveUnit(ctx, kept))

	t.Run("commit keeps every write", func(t *testing.T) {
		added := builder.NewUnitBuilder().BuildReconstructed()
		donation := builder.NewEventLog("hospital-1").Donation(unit.OPositive, "donor-a", now).Events[0]

		err := s.RunInTx(ctx, func(ctx context.Context, tx usecase.Repositories) error {
			if err := tx.SaveUnit(ctx, added); err != nil {
				return err
			}
			got, err := tx.GetUnit(ctx, added.ID())
			if err != nil {
				return err
			}
			assert.Equal(t, added.ID(), got.ID(), "a transaction reads its own writes")
			return tx.AppendEvent(ctx, donation)
		})
		require.NoError(t, err)

		_, err = s.GetUnit(ctx, added.ID())
		require.NoError(t, err)
		logged, err := s.ListEvents(ctx, event.Query{HospitalID: "hospital-1"})
		require.NoError(t, err)
		require.Len(t, logged, 1)
		assert.Equal(t, donation.ID, logged[0].ID)
	})

	t.Run("failure discards every write", func(t *testing.T) {
		before, err := s.ListEvents(ctx, event.Query{})
		require.NoError(t, err)

		orphan := builder.NewUnitBuilder().BuildReconstructed()
		failure := errs.New("dispense failed")
		err = s.RunInTx(ctx, func(ctx context.Context, tx usecase.Repositories) error {
			if err := tx.SaveUnit(ctx, orphan); err != nil {
				return err
			}
			if err := tx.DeleteUnit(ctx, kept.ID()); err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, builder.NewEventLog("hospital-1").Expired(unit.OPositive, 1, now).Events[0]); err != nil {
				return err
			}
			return failure
		})
		assert.True(t, errs.Is(err, failure), "fn's error is returned as is: %v", err)

		_, err = s.GetUnit(ctx, orphan.ID())
		assert.True(t, errs.Is(err, errs.ErrNotFound), "insert rolled back: %v", err)
		_, err = s.GetUnit(ctx, kept.ID())
		assert.NoError(t, err, "delete rolled back")
		after, err := s.ListEvents(ctx, event.Query{})
		require.NoError(t, err)
		assert.Len(t, after, len(before), "event append rolled back")
	})
}
