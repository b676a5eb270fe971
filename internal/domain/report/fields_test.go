//go:build unit

package report_test

import (
	"testing"

	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"averageFulfillmentTime": "Average Fulfillment Time",
		"periodDays":             "Period Days",
		"efficiency":             "Efficiency",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, report.TitleCase(in), in)
	}
}

func TestStatsFromFields(t *testing.T) {
	stats := report.HospitalStats{
		PeriodDays:             30,
		TotalDonations:         12,
		TotalRequests:          7,
		SuccessfulRequests:     6,
		AverageFulfillmentTime: 3.25,
		EmergencyResponseRate:  0.8333,
		InventoryEfficiency:    0.9167,
		DonorRetentionRate:     0.25,
	}
	fields := stats.Fields()
	require.Len(t, fields, len(report.StatsKeys))

	values := map[string]string{}
	for i, f := range fields {
		assert.Equal(t, report.StatsKeys[i], f.Key)
		values[f.Key] = f.Value.String()
	}
	got, err := report.StatsFromFields(values)
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	t.Run("missing column", func(t *testing.T) {
		delete(values, "totalRequests")
		_, err := report.StatsFromFields(values)
		assert.True(t, errs.Is(err, errs.ErrValidation))
	})

	t.Run("not a number", func(t *testing.T) {
		values["totalRequests"] = "seven"
		_, err := report.StatsFromFields(values)
		assert.True(t, errs.Is(err, errs.ErrValidation))
	})
}
