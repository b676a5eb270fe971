//go:build unit

package storage_test

import (
	"testing"

	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(vs []storage.Violation) []storage.ViolationCode {
	out := make([]storage.ViolationCode, len(vs))
	for i, v := range vs {
		out[i] = v.Code
	}
	return out
}

func TestEvaluate(t *testing.T) {
	fridge := func(temp float64) *storage.Location {
		loc, err := builder.NewLocationBuilder().BuildDomain()
		require.NoError(t, err)
		loc.RecordTemperature(temp, builder.DefaultNow)
		return loc
	}
	freezer := func(temp float64) *storage.Location {
		loc, err := builder.NewLocationBuilder().Freezer().BuildDomain()
		require.NoError(t, err)
		loc.RecordTemperature(temp, builder.DefaultNow)
		return loc
	}

	cases := []struct {
		name     string
		loc      *storage.Location
		occupied int
		want     []storage.ViolationCode
	}{
		{name: "refrigerator in range", loc: fridge(4), occupied: 3, want: []storage.ViolationCode{}},
		{name: "refrigerator at the bounds", loc: fridge(6), occupied: 10, want: []storage.ViolationCode{}},
		{name: "refrigerator too cold", loc: fridge(1.5), want: []storage.ViolationCode{storage.ViolationTemperatureLow}},
		{name: "refrigerator too warm", loc: fridge(6.1), want: []storage.ViolationCode{storage.ViolationTemperatureHigh}},
		{name: "freezer at -18", loc: freezer(-18), want: []storage.ViolationCode{}},
		{name: "freezer too warm", loc: freezer(-17.9), want: []storage.ViolationCode{storage.ViolationTemperatureHigh}},
		{
			name:     "warm and over capacity",
			loc:      freezer(-5),
			occupied: 3,
			want:     []storage.ViolationCode{storage.ViolationTemperatureHigh, storage.ViolationOverCapacity},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := storage.Evaluate(tc.loc, tc.occupied)
			assert.Equal(t, tc.want, codes(got))
		})
	}

	t.Run("severities", func(t *testing.T) {
		got := storage.Evaluate(freezer(-5), 3)
		require.Len(t, got, 2)
		assert.Equal(t, storage.SeverityCritical, got[0].Severity)
		assert.True(t, got[0].IsTemperature())
		assert.Equal(t, storage.SeveritySev1, got[1].Severity)
		assert.False(t, got[1].IsTemperature())
		assert.Contains(t, got[1].Message, "3/2")
	})
}
