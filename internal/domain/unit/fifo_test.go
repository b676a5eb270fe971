//go:build unit

package unit_test

import (
	"testing"
	"time"

	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/tests/common/builder"

	"github.com/stretchr/testify/assert"
)

func donatedDaysAgo(days int, mutate ...func(*builder.UnitBuilder)) *unit.Unit {
	b := builder.NewUnitBuilder().With(func(b *builder.UnitBuilder) {
		b.DonatedAt = builder.DefaultNow.Add(-time.Duration(days) * 24 * time.Hour)
	})
	for _, m := range mutate {
		b.With(m)
	}
	return b.BuildReconstructed()
}

func ids(units []*unit.Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.ID()
	}
	return out
}

func TestSelectFIFO(t *testing.T) {
	now := builder.DefaultNow
	newest := donatedDaysAgo(1)
	oldest := donatedDaysAgo(30)
	middle := donatedDaysAgo(10)
	expired := donatedDaysAgo(50)
	reserved := donatedDaysAgo(35, func(b *builder.UnitBuilder) { b.Status = unit.StatusReserved })
	otherType := donatedDaysAgo(40, func(b *builder.UnitBuilder) { b.BloodType = unit.ONegative })

	stock := []*unit.Unit{newest, expired, otherType, middle, reserved, oldest}

	t.Run("oldest dispensable donation first", func(t *testing.T) {
		picked := unit.SelectFIFO(stock, unit.OPositive, 2, now)
		assert.Equal(t, []string{oldest.ID(), middle.ID()}, ids(picked))
	})

	t.Run("returns what exists when short", func(t *testing.T) {
		picked := unit.SelectFIFO(stock, unit.OPositive, 10, now)
		assert.Equal(t, []string{oldest.ID(), middle.ID(), newest.ID()}, ids(picked))
	})

	t.Run("non-positive quantity picks nothing", func(t *testing.T) {
		assert.Empty(t, unit.SelectFIFO(stock, unit.OPositive, 0, now))
	})

	t.Run("input order is left alone", func(t *testing.T) {
		before := ids(stock)
		_ = unit.SortFIFO(stock)
		assert.Equal(t, before, ids(stock))
	})
}

func TestSortByExpiration(t *testing.T) {
	platelets := donatedDaysAgo(1, func(b *builder.UnitBuilder) { b.Component = unit.Platelets })
	redCells := donatedDaysAgo(20)
	plasma := donatedDaysAgo(100, func(b *builder.UnitBuilder) { b.Component = unit.Plasma })

	sorted := unit.SortByExpiration([]*unit.Unit{plasma, redCells, platelets})
	assert.Equal(t, []string{platelets.ID(), redCells.ID(), plasma.ID()}, ids(sorted))
}

func TestFilter_Matches(t *testing.T) {
	placed := donatedDaysAgo(1, func(b *builder.UnitBuilder) { b.LocationID = "fridge-1" })
	loose := donatedDaysAgo(1)

	assert.True(t, unit.Filter{}.Matches(loose))
	assert.False(t, unit.Filter{PlacedOnly: true}.Matches(loose))
	assert.True(t, unit.Filter{PlacedOnly: true, LocationID: "fridge-1"}.Matches(placed))
	assert.False(t, unit.Filter{HospitalID: "hospital-2"}.Matches(placed))
	assert.False(t, unit.Filter{Statuses: []unit.Status{unit.StatusReserved}}.Matches(placed))
	assert.True(t, unit.Filter{Statuses: []unit.Status{unit.StatusReserved, unit.StatusAvailable}}.Matches(placed))
}
