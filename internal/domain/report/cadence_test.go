//go:build unit

package report_test

import (
	"testing"
	"time"

	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCadence(t *testing.T) {
	c, err := report.ParseCadence(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, report.Weekly, c)

	_, err = report.ParseCadence("hourly")
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func TestCadence_Next(t *testing.T) {
	// 2026-03-01 is a Sunday
	now := builder.DefaultNow
	cases := []struct {
		cadence report.Cadence
		want    time.Time
	}{
		{report.Daily, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{report.Weekly, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)},
		{report.Monthly, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.cadence), func(t *testing.T) {
			got, err := tc.cadence.Next(now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unknown cadence", func(t *testing.T) {
		_, err := report.Cadence("yearly").Next(now)
		assert.True(t, errs.Is(err, errs.ErrValidation))
	})
}

func TestJob(t *testing.T) {
	_, err := report.NewJob("", report.Daily, builder.DefaultNow)
	assert.True(t, errs.Is(err, errs.ErrValidation))
	_, err = report.NewJob("hospital-1", "hourly", builder.DefaultNow)
	assert.True(t, errs.Is(err, errs.ErrValidation))

	job, err := report.NewJob("hospital-1", report.Daily, builder.DefaultNow)
	require.NoError(t, err)
	assert.Nil(t, job.LastReport)

	t.Run("only the latest report is kept", func(t *testing.T) {
		first := report.PerformanceReport{HospitalID: "hospital-1", GeneratedAt: builder.DefaultNow}
		second := report.PerformanceReport{HospitalID: "hospital-1", GeneratedAt: builder.DefaultNow.Add(24 * time.Hour)}
		job.Record(first)
		job.Record(second)
		require.NotNil(t, job.LastReport)
		assert.Equal(t, second.GeneratedAt, job.LastReport.GeneratedAt)
		assert.Equal(t, second.GeneratedAt, job.LastGeneratedAt)
	})

	t.Run("clone does not share the report", func(t *testing.T) {
		clone := job.Clone()
		clone.LastReport.HospitalID = "changed"
		assert.Equal(t, "hospital-1", job.LastReport.HospitalID)
	})
}
