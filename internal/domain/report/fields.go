package report

import (
	"strings"
	"unicode"

	"bloodbank-ops/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// Field is one flattened KPI. Key is the camelCase wire name.
type Field struct {
	Key   string
	Value decimal.Decimal
}

func (f Field) Label() string {
	return TitleCase(f.Key)
}

// StatsKeys is the column order of a flattened HospitalStats.
var StatsKeys = []string{
	"periodDays",
	"totalDonations",
	"totalRequests",
	"successfulRequests",
	"averageFulfillmentTime",
	"emergencyResponseRate",
	"inventoryEfficiency",
	"donorRetentionRate",
}

func (s HospitalStats) Fields() []Field {
	return []Field{
		{Key: "periodDays", Value: decimal.NewFromInt(int64(s.PeriodDays))},
		{Key: "totalDonations", Value: decimal.NewFromInt(int64(s.TotalDonations))},
		{Key: "totalRequests", Value: decimal.NewFromInt(int64(s.TotalRequests))},
		{Key: "successfulRequests", Value: decimal.NewFromInt(int64(s.SuccessfulRequests))},
		{Key: "averageFulfillmentTime", Value: decimal.NewFromFloat(s.AverageFulfillmentTime)},
		{Key: "emergencyResponseRate", Value: decimal.NewFromFloat(s.EmergencyResponseRate)},
		{Key: "inventoryEfficiency", Value: decimal.NewFromFloat(s.InventoryEfficiency)},
		{Key: "donorRetentionRate", Value: decimal.NewFromFloat(s.DonorRetentionRate)},
	}
}

func (i Improvements) Fields() []Field {
	return []Field{
		{Key: "fulfillmentTime", Value: decimal.NewFromFloat(i.FulfillmentTime)},
		{Key: "emergencyResponse", Value: decimal.NewFromFloat(i.EmergencyResponse)},
		{Key: "efficiency", Value: decimal.NewFromFloat(i.Efficiency)},
	}
}

// StatsFromFields is the inverse of HospitalStats.Fields for the flattened
// columns. Window bounds and hospital are not part of the flat form.
func StatsFromFields(values map[string]string) (HospitalStats, error) {
	parsed := make(map[string]decimal.Decimal, len(StatsKeys))
	for _, k := range StatsKeys {
		raw, ok := values[k]
		if !ok {
			return HospitalStats{}, errs.Markf(errs.ErrValidation, "missing column %q", k)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return HospitalStats{}, errs.Mark(errs.Wrapf(err, "column %q", k), errs.ErrValidation)
		}
		parsed[k] = d
	}
	asFloat := func(k string) float64 {
		f, _ := parsed[k].Float64()
		return f
	}
	return HospitalStats{
		PeriodDays:             int(parsed["periodDays"].IntPart()),
		TotalDonations:         int(parsed["totalDonations"].IntPart()),
		TotalRequests:          int(parsed["totalRequests"].IntPart()),
		SuccessfulRequests:     int(parsed["successfulRequests"].IntPart()),
		AverageFulfillmentTime: asFloat("averageFulfillmentTime"),
		EmergencyResponseRate:  asFloat("emergencyResponseRate"),
		InventoryEfficiency:    asFloat("inventoryEfficiency"),
		DonorRetentionRate:     asFloat("donorRetentionRate"),
	}, nil
}

// TitleCase turns a camelCase key into a label: "averageFulfillmentTime"
// becomes "Average Fulfillment Time".
func TitleCase(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
