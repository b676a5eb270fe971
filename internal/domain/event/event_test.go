//go:build unit

package event_test

import (
	"testing"
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	now := builder.DefaultNow

	t.Run("routine by default", func(t *testing.T) {
		req, err := event.NewRequest("hospital-1", unit.OPositive, 2, "", now)
		require.NoError(t, err)
		assert.Equal(t, event.KindRequestRaised, req.Kind)
		assert.Equal(t, event.UrgencyRoutine, req.Urgency)
		assert.Equal(t, req.ID, req.RequestID)
		assert.False(t, req.IsHighUrgency())
	})

	t.Run("high and critical are emergencies", func(t *testing.T) {
		for _, u := range []event.Urgency{event.UrgencyHigh, event.UrgencyCritical} {
			req, err := event.NewRequest("hospital-1", unit.OPositive, 1, u, now)
			require.NoError(t, err)
			assert.Equal(t, event.KindEmergencyRequest, req.Kind, u)
			assert.True(t, req.IsHighUrgency())
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			name     string
			hospital string
			bt       unit.BloodType
			qty      int
			urgency  event.Urgency
		}{
			{"missing hospital", "", unit.OPositive, 1, event.UrgencyRoutine},
			{"unknown blood type", "hospital-1", "X", 1, event.UrgencyRoutine},
			{"zero quantity", "hospital-1", unit.OPositive, 0, event.UrgencyRoutine},
			{"unknown urgency", "hospital-1", unit.OPositive, 1, "whenever"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := event.NewRequest(tc.hospital, tc.bt, tc.qty, tc.urgency, now)
				assert.True(t, errs.Is(err, errs.ErrValidation))
			})
		}
	})
}

func TestNewFulfillment(t *testing.T) {
	req, err := event.NewRequest("hospital-1", unit.ONegative, 2, event.UrgencyUrgent, builder.DefaultNow)
	require.NoError(t, err)

	f := event.NewFulfillment(req, []string{"u1", "u2"}, builder.DefaultNow.Add(time.Hour))
	assert.Equal(t, event.KindRequestFulfilled, f.Kind)
	assert.Equal(t, req.RequestID, f.RequestID)
	assert.Equal(t, 2, f.Quantity)
	assert.NotEqual(t, req.ID, f.ID)

	clone := f.Clone()
	clone.UnitIDs[0] = "changed"
	assert.Equal(t, "u1", f.UnitIDs[0])
}

func TestFilter(t *testing.T) {
	now := builder.DefaultNow
	log := builder.NewEventLog("hospital-1").
		Donation(unit.OPositive, "donor-a", now.Add(2*time.Hour)).
		Donation(unit.OPositive, "donor-b", now).
		Expired(unit.OPositive, 1, now.Add(time.Hour))
	log.Request(unit.ANegative, 1, event.UrgencyRoutine, now.Add(3*time.Hour))

	t.Run("chronological order", func(t *testing.T) {
		got := event.Filter(log.Events, event.Query{})
		require.Len(t, got, 4)
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].OccurredAt.Before(got[i-1].OccurredAt))
		}
	})

	t.Run("from is inclusive, to exclusive", func(t *testing.T) {
		got := event.Filter(log.Events, event.Query{From: now, To: now.Add(2 * time.Hour)})
		assert.Len(t, got, 2)
	})

	t.Run("by kind and blood type", func(t *testing.T) {
		assert.Len(t, event.Filter(log.Events, event.Query{Kinds: event.RequestKinds}), 1)
		assert.Len(t, event.Filter(log.Events, event.Query{BloodType: unit.OPositive}), 3)
		assert.Empty(t, event.Filter(log.Events, event.Query{HospitalID: "hospital-2"}))
	})
}
