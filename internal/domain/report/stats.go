package report

import (
	"time"

	"bloodbank-ops/internal/domain/event"

	"github.com/shopspring/decimal"
)

const (
	CurrentMonthDays = 30
	YearDays         = 365
)

// HospitalStats are the KPIs for one hospital over [From, To).
type HospitalStats struct {
	HospitalID         string    `json:"hospitalId"`
	PeriodDays         int       `json:"periodDays"`
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	TotalDonations     int       `json:"totalDonations"`
	TotalRequests      int       `json:"totalRequests"`
	SuccessfulRequests int       `json:"successfulRequests"`
	// AverageFulfillmentTime is in hours over matched request/fulfillment pairs.
	AverageFulfillmentTime float64 `json:"averageFulfillmentTime"`
	EmergencyResponseRate  float64 `json:"emergencyResponseRate"`
	InventoryEfficiency    float64 `json:"inventoryEfficiency"`
	DonorRetentionRate     float64 `json:"donorRetentionRate"`
}

// CalculateStats derives the KPIs from the events of one hospital. Events
// outside [from, to) are ignored. Ratios with an empty denominator are 0.
func CalculateStats(events []event.Event, hospitalID string, periodDays int, from, to time.Time) HospitalStats {
	window := event.Filter(events, event.Query{HospitalID: hospitalID, From: from, To: to})

	stats := HospitalStats{
		HospitalID: hospitalID,
		PeriodDays: periodDays,
		From:       from.UTC(),
		To:         to.UTC(),
	}

	var (
		donated, expired int
		donations        = map[string]int{}
		requests         = map[string]event.Event{}
		fulfilled        = map[string]event.Event{}
	)
	for _, e := range window {
		switch e.Kind {
		case event.KindInventoryUpdate:
			if e.Quantity > 0 {
				donated += e.Quantity
				if e.Reason == event.ReasonDonation && e.DonorID != "" {
					donations[e.DonorID]++
				}
			}
			if e.Quantity < 0 && e.Reason == event.ReasonExpiration {
				expired += -e.Quantity
			}
		case event.KindRequestRaised, event.KindEmergencyRequest:
			requests[e.RequestID] = e
		case event.KindRequestFulfilled:
			stats.SuccessfulRequests++
			if _, seen := fulfilled[e.RequestID]; !seen {
				fulfilled[e.RequestID] = e
			}
		}
	}

	stats.TotalDonations = donated
	stats.TotalRequests = len(requests)

	var (
		pairs                        int
		latency                      time.Duration
		highUrgency, highUrgencyDone int
	)
	for id, req := range requests {
		f, ok := fulfilled[id]
		if ok {
			pairs++
			latency += f.OccurredAt.Sub(req.OccurredAt)
		}
		if req.IsHighUrgency() {
			highUrgency++
			if ok {
				highUrgencyDone++
			}
		}
	}
	if pairs > 0 {
		stats.AverageFulfillmentTime = roundHours(latency.Hours() / float64(pairs))
	}
	if highUrgency > 0 {
		stats.EmergencyResponseRate = roundRatio(float64(highUrgencyDone) / float64(highUrgency))
	}
	if donated > 0 {
		stats.InventoryEfficiency = roundRatio(1 - float64(expired)/float64(donated))
	}
	if len(donations) > 0 {
		returning := 0
		for _, n := range donations {
			if n > 1 {
				returning++
			}
		}
		stats.DonorRetentionRate = roundRatio(float64(returning) / float64(len(donations)))
	}
	return stats
}

// Improvements compare the current month against the yearly baseline.
// Positive values are better in every field.
type Improvements struct {
	FulfillmentTime   float64 `json:"fulfillmentTime"`
	EmergencyResponse float64 `json:"emergencyResponse"`
	Efficiency        float64 `json:"efficiency"`
}

func CompareStats(month, year HospitalStats) Improvements {
	return Improvements{
		FulfillmentTime:   roundHours(year.AverageFulfillmentTime - month.AverageFulfillmentTime),
		EmergencyResponse: roundRatio(month.EmergencyResponseRate - year.EmergencyResponseRate),
		Efficiency:        roundRatio(month.InventoryEfficiency - year.InventoryEfficiency),
	}
}

type PerformanceReport struct {
	HospitalID   string        `json:"hospitalId"`
	GeneratedAt  time.Time     `json:"generatedAt"`
	CurrentMonth HospitalStats `json:"currentMonth"`
	YearToDate   HospitalStats `json:"yearToDate"`
	Improvements Improvements  `json:"improvements"`
}

// BuildPerformanceReport computes the 30 and 365 day windows ending at now.
func BuildPerformanceReport(events []event.Event, hospitalID string, now time.Time) PerformanceReport {
	month := CalculateStats(events, hospitalID, CurrentMonthDays, now.AddDate(0, 0, -CurrentMonthDays), now)
	year := CalculateStats(events, hospitalID, YearDays, now.AddDate(0, 0, -YearDays), now)
	return PerformanceReport{
		HospitalID:   hospitalID,
		GeneratedAt:  now.UTC(),
		CurrentMonth: month,
		YearToDate:   year,
		Improvements: CompareStats(month, year),
	}
}

func roundHours(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func roundRatio(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}
