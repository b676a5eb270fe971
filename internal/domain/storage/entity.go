package storage

import (
	"strings"
	"time"

	"bloodbank-ops/internal/pkg/errs"
)

type Kind string

const (
	KindRefrigerator Kind = "refrigerator"
	KindFreezer      Kind = "freezer"
)

func (k Kind) IsValid() bool {
	return k == KindRefrigerator || k == KindFreezer
}

// Safe storage bands in °C.
const (
	RefrigeratorMin = 2.0
	RefrigeratorMax = 6.0
	FreezerMax      = -18.0
)

// InRange reports whether temp is inside the safe band for the kind.
func (k Kind) InRange(temp float64) bool {
	switch k {
	case KindRefrigerator:
		return temp >= RefrigeratorMin && temp <= RefrigeratorMax
	case KindFreezer:
		return temp <= FreezerMax
	default:
		return false
	}
}

// Spec is the operator input for a new location.
type Spec struct {
	ID                string
	Name              string
	Kind              Kind
	TargetTemperature float64
	Capacity          int
}

type Location struct {
	id                 string
	name               string
	kind               Kind
	targetTemperature  float64
	currentTemperature float64
	capacity           int
	createdAt          time.Time
	updatedAt          time.Time
}

func NewLocation(spec Spec, now time.Time) (*Location, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Location{
		id:                 strings.TrimSpace(spec.ID),
		name:               strings.TrimSpace(spec.Name),
		kind:               spec.Kind,
		targetTemperature:  spec.TargetTemperature,
		currentTemperature: spec.TargetTemperature,
		capacity:           spec.Capacity,
		createdAt:          now.UTC(),
		updatedAt:          now.UTC(),
	}, nil
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errs.Markf(errs.ErrValidation, "location id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return errs.Markf(errs.ErrValidation, "location name is required")
	}
	if !s.Kind.IsValid() {
		return errs.Markf(errs.ErrValidation, "unknown location kind %q", s.Kind)
	}
	if s.Capacity <= 0 {
		return errs.Markf(errs.ErrValidation, "capacity must be positive, got %d", s.Capacity)
	}
	if !s.Kind.InRange(s.TargetTemperature) {
		return errs.Markf(errs.ErrValidation, "target temperature %.1f°C is outside the %s band", s.TargetTemperature, s.Kind)
	}
	return nil
}

func ReconstructLocation(
	id, name string,
	kind Kind,
	targetTemperature, currentTemperature float64,
	capacity int,
	createdAt, updatedAt time.Time,
) *Location {
	return &Location{
		id:                 id,
		name:               name,
		kind:               kind,
		targetTemperature:  targetTemperature,
		currentTemperature: currentTemperature,
		capacity:           capacity,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// RecordTemperature stores the latest sampled temperature.
func (l *Location) RecordTemperature(value float64, at time.Time) {
	l.currentTemperature = value
	l.updatedAt = at.UTC()
}

// HasRoom is the insert-time capacity check.
func (l *Location) HasRoom(occupied int) bool {
	return occupied < l.capacity
}

func (l *Location) AvailableCapacity(occupied int) int {
	free := l.capacity - occupied
	if free < 0 {
		return 0
	}
	return free
}

func (l *Location) Clone() *Location {
	c := *l
	return &c
}

func (l *Location) ID() string                  { return l.id }
func (l *Location) Name() string                { return l.name }
func (l *Location) Kind() Kind                  { return l.kind }
func (l *Location) TargetTemperature() float64  { return l.targetTemperature }
func (l *Location) CurrentTemperature() float64 { return l.currentTemperature }
func (l *Location) Capacity() int               { return l.capacity }
func (l *Location) CreatedAt() time.Time        { return l.createdAt }
func (l *Location) UpdatedAt() time.Time        { return l.updatedAt }
