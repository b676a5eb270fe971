package temperature

import (
	"math"
	"time"
)

const (
	StatsSpan = 24 * time.Hour
	DriftSpan = time.Hour

	// FluctuationThreshold catches short spikes such as a door left open.
	FluctuationThreshold = 3.0
	// DriftThreshold catches a sustained shift such as a failing compressor.
	DriftThreshold = 2.0
)

type Stats struct {
	Current     float64
	Average     float64
	Min         float64
	Max         float64
	Fluctuation float64
	Samples     int
	From        time.Time
	To          time.Time
}

type AnomalyKind string

const (
	AnomalyFluctuation AnomalyKind = "fluctuation"
	AnomalyDrift       AnomalyKind = "sustained_drift"
)

type Anomaly struct {
	LocationID string
	Kind       AnomalyKind
	Observed   float64
	Threshold  float64
	DetectedAt time.Time
}

// inSpan keeps readings no older than span before the latest one.
func inSpan(readings []Reading, span time.Duration) []Reading {
	if len(readings) == 0 {
		return nil
	}
	cutoff := readings[len(readings)-1].At.Add(-span)
	for i, r := range readings {
		if !r.At.Before(cutoff) {
			return readings[i:]
		}
	}
	return nil
}

// ComputeStats summarises the last 24h of readings (oldest first).
func ComputeStats(readings []Reading) (Stats, bool) {
	window := inSpan(readings, StatsSpan)
	if len(window) == 0 {
		return Stats{}, false
	}
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, r := range window {
		minV = math.Min(minV, r.Value)
		maxV = math.Max(maxV, r.Value)
	}
	return Stats{
		Current:     window[len(window)-1].Value,
		Average:     average(window),
		Min:         minV,
		Max:         maxV,
		Fluctuation: maxV - minV,
		Samples:     len(window),
		From:        window[0].At,
		To:          window[len(window)-1].At,
	}, true
}

// DetectAnomalies evaluates the two independent heuristics. Both are
// returned when both hold.
func DetectAnomalies(locationID string, readings []Reading) []Anomaly {
	stats, ok := ComputeStats(readings)
	if !ok {
		return nil
	}
	var out []Anomaly
	if stats.Fluctuation > FluctuationThreshold {
		out = append(out, Anomaly{
			LocationID: locationID,
			Kind:       AnomalyFluctuation,
			Observed:   stats.Fluctuation,
			Threshold:  FluctuationThreshold,
			DetectedAt: stats.To,
		})
	}
	lastHour := inSpan(readings, DriftSpan)
	if drift := math.Abs(average(lastHour) - stats.Average); len(lastHour) > 0 && drift > DriftThreshold {
		out = append(out, Anomaly{
			LocationID: locationID,
			Kind:       AnomalyDrift,
			Observed:   drift,
			Threshold:  DriftThreshold,
			DetectedAt: stats.To,
		})
	}
	return out
}

func average(readings []Reading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return sum / float64(len(readings))
}
