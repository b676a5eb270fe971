// Package forecast derives per-blood-type demand predictions from the
// request history: a 30 day mean of daily totals with a confidence derived
// from the spread.
package forecast

import (
	"math"
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"

	"github.com/shopspring/decimal"
)

const (
	HistoryDays  = 30
	HorizonDays  = 7
	MinimumRatio = 1.2
	OptimalRatio = 1.5
	// Jitter is the maximum relative perturbation applied per projected day.
	Jitter = 0.1
)

// Source yields values in [0,1). It is injected so projections are reproducible in tests.
type Source interface {
	Float64() float64
}

type DayProjection struct {
	Date   time.Time `json:"date"`
	Demand float64   `json:"demand"`
}

type Prediction struct {
	BloodType       unit.BloodType  `json:"bloodType"`
	PredictedDemand float64         `json:"predictedDemand"`
	Confidence      float64         `json:"confidence"`
	DataPoints      int             `json:"dataPoints"`
	MinimumLevel    int             `json:"minimumLevel"`
	OptimalLevel    int             `json:"optimalLevel"`
	NextDays        []DayProjection `json:"nextDays"`
}

type Forecast struct {
	HospitalID  string       `json:"hospitalId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Predictions []Prediction `json:"predictions"`
}

// For returns the prediction for one blood type.
func (f Forecast) For(bt unit.BloodType) (Prediction, bool) {
	for _, p := range f.Predictions {
		if p.BloodType == bt {
			return p, true
		}
	}
	return Prediction{}, false
}

// DailyTotals sums requested quantities per UTC calendar day. Days without
// requests are absent.
func DailyTotals(requests []event.Event, bt unit.BloodType) []float64 {
	totals := map[time.Time]float64{}
	var order []time.Time
	for _, e := range requests {
		if !e.Kind.IsRequest() || e.BloodType != bt {
			continue
		}
		day := e.OccurredAt.UTC().Truncate(24 * time.Hour)
		if _, seen := totals[day]; !seen {
			order = append(order, day)
		}
		totals[day] += float64(e.Quantity)
	}
	out := make([]float64, 0, len(order))
	for _, d := range order {
		out = append(out, totals[d])
	}
	return out
}

// MeanStdDev returns the mean and population standard deviation.
func MeanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// Confidence is 1/(1+cv). Fewer than two points, or no demand, means no confidence.
func Confidence(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, sd := MeanStdDev(values)
	if mean == 0 {
		return 0
	}
	return 1 / (1 + sd/mean)
}

func MinimumLevel(demand float64) int {
	return stockLevel(demand, MinimumRatio)
}

func OptimalLevel(demand float64) int {
	return stockLevel(demand, OptimalRatio)
}

// stockLevel rounds away float noise before taking the ceiling so that an
// exact product such as 20/3*1.5 yields 10, not 11.
func stockLevel(demand, ratio float64) int {
	return int(decimal.NewFromFloat(demand).Mul(decimal.NewFromFloat(ratio)).Round(6).Ceil().IntPart())
}

// Predict builds the prediction for one blood type from request events that
// already fall inside the history window.
func Predict(requests []event.Event, bt unit.BloodType, start time.Time, src Source) Prediction {
	totals := DailyTotals(requests, bt)
	mean, _ := MeanStdDev(totals)

	next := make([]DayProjection, HorizonDays)
	day := start.UTC().Truncate(24 * time.Hour)
	for i := range next {
		factor := 1 + src.Float64()*2*Jitter - Jitter
		next[i] = DayProjection{
			Date:   day.AddDate(0, 0, i+1),
			Demand: Round(mean * factor),
		}
	}

	return Prediction{
		BloodType:       bt,
		PredictedDemand: Round(mean),
		Confidence:      Round(Confidence(totals)),
		DataPoints:      len(totals),
		MinimumLevel:    MinimumLevel(mean),
		OptimalLevel:    OptimalLevel(mean),
		NextDays:        next,
	}
}

// Build runs Predict for every blood type.
func Build(hospitalID string, requests []event.Event, now time.Time, src Source) Forecast {
	preds := make([]Prediction, 0, len(unit.AllBloodTypes))
	for _, bt := range unit.AllBloodTypes {
		preds = append(preds, Predict(requests, bt, now, src))
	}
	return Forecast{
		HospitalID:  hospitalID,
		GeneratedAt: now.UTC(),
		Predictions: preds,
	}
}

// Window is the [from, to) range of history a forecast made at now reads.
func Window(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -HistoryDays), now
}

// Round keeps two decimal places, half away from zero.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
