package storage

import "fmt"

type Severity string

const (
	// SeverityCritical is a temperature excursion: product safety is at risk.
	SeverityCritical Severity = "critical"
	// SeveritySev1 means an invariant that insert-time checks should have
	// prevented has been broken. It is reported, never auto-corrected.
	SeveritySev1 Severity = "sev1"
)

type ViolationCode string

const (
	ViolationTemperatureLow  ViolationCode = "temperature_below_range"
	ViolationTemperatureHigh ViolationCode = "temperature_above_range"
	ViolationOverCapacity    ViolationCode = "over_capacity"
)

type Violation struct {
	LocationID string
	Code       ViolationCode
	Severity   Severity
	Message    string
}

func (v Violation) IsTemperature() bool {
	return v.Code == ViolationTemperatureLow || v.Code == ViolationTemperatureHigh
}

// Evaluate checks a location against its temperature band and capacity.
func Evaluate(l *Location, occupied int) []Violation {
	var out []Violation
	temp := l.currentTemperature

	switch l.kind {
	case KindRefrigerator:
		if temp < RefrigeratorMin {
			out = append(out, Violation{
				LocationID: l.id,
				Code:       ViolationTemperatureLow,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("refrigerator %s (%s) at %.1f°C, below %.0f°C", l.name, l.id, temp, RefrigeratorMin),
			})
		} else if temp > RefrigeratorMax {
			out = append(out, Violation{
				LocationID: l.id,
				Code:       ViolationTemperatureHigh,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("refrigerator %s (%s) at %.1f°C, above %.0f°C", l.name, l.id, temp, RefrigeratorMax),
			})
		}
	case KindFreezer:
		if temp > FreezerMax {
			out = append(out, Violation{
				LocationID: l.id,
				Code:       ViolationTemperatureHigh,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("freezer %s (%s) at %.1f°C, above %.0f°C", l.name, l.id, temp, FreezerMax),
			})
		}
	}

	if occupied > l.capacity {
		out = append(out, Violation{
			LocationID: l.id,
			Code:       ViolationOverCapacity,
			Severity:   SeveritySev1,
			Message:    fmt.Sprintf("location %s (%s) over capacity: %d/%d units", l.name, l.id, occupied, l.capacity),
		})
	}
	return out
}
