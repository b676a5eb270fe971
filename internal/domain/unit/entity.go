package unit

import (
	"fmt"
	"math"
	"strings"
	"time"

	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/pkg/ids"
)

// RotationThresholdDays is the remaining shelf life at which an available unit
// should be moved to the front of the dispensing queue or out of storage.
const RotationThresholdDays = 7

type Unit struct {
	id         string
	bloodType  BloodType
	component  Component
	donorID    string
	hospitalID string
	locationID string
	donatedAt  time.Time
	expiresAt  time.Time
	status     Status
	createdAt  time.Time
}

// New registers a donation. Expiration is derived from the component shelf
// life and can never be changed afterwards.
func New(bloodType BloodType, component Component, donorID, hospitalID string, donatedAt, now time.Time) (*Unit, error) {
	if !bloodType.IsValid() {
		return nil, errs.Markf(errs.ErrValidation, "unknown blood type %q", bloodType)
	}
	if !component.IsValid() {
		return nil, errs.Markf(errs.ErrValidation, "unknown component %q", component)
	}
	if strings.TrimSpace(donorID) == "" {
		return nil, errs.Markf(errs.ErrValidation, "donor id is required")
	}
	if strings.TrimSpace(hospitalID) == "" {
		return nil, errs.Markf(errs.ErrValidation, "hospital id is required")
	}
	if donatedAt.IsZero() {
		return nil, errs.Markf(errs.ErrValidation, "donation time is required")
	}
	if donatedAt.After(now) {
		return nil, errs.Markf(errs.ErrValidation, "donation time %s is in the future", donatedAt.Format(time.RFC3339))
	}

	return &Unit{
		id:         NewID(bloodType, donorID, now),
		bloodType:  bloodType,
		component:  component,
		donorID:    donorID,
		hospitalID: hospitalID,
		donatedAt:  donatedAt.UTC(),
		expiresAt:  donatedAt.UTC().Add(component.ShelfLife()),
		status:     StatusAvailable,
		createdAt:  now.UTC(),
	}, nil
}

// NewID derives a unit id from the blood type, the donor id suffix and the
// creation time. The time part is a ULID so ids minted in the same
// millisecond remain distinct.
func NewID(bloodType BloodType, donorID string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s", bloodType.Code(), donorSuffix(donorID), ids.At(createdAt))
}

func donorSuffix(donorID string) string {
	clean := strings.ToUpper(strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, donorID))
	if len(clean) > 4 {
		return clean[len(clean)-4:]
	}
	if clean == "" {
		return "ANON"
	}
	return clean
}

func Reconstruct(
	id string,
	bloodType BloodType,
	component Component,
	donorID, hospitalID, locationID string,
	donatedAt, expiresAt time.Time,
	status Status,
	createdAt time.Time,
) *Unit {
	return &Unit{
		id:         id,
		bloodType:  bloodType,
		component:  component,
		donorID:    donorID,
		hospitalID: hospitalID,
		locationID: locationID,
		donatedAt:  donatedAt,
		expiresAt:  expiresAt,
		status:     status,
		createdAt:  createdAt,
	}
}

// TransitionTo applies a monotonic status change.
func (u *Unit) TransitionTo(next Status) error {
	if !next.IsValid() {
		return errs.Markf(errs.ErrValidation, "unknown status %q", next)
	}
	if !u.status.CanTransitionTo(next) {
		return errs.Markf(errs.ErrInvalidTransition, "unit %s cannot move from %s to %s", u.id, u.status, next)
	}
	u.status = next
	return nil
}

// PlaceIn records the unit's storage location.
func (u *Unit) PlaceIn(locationID string) {
	u.locationID = locationID
}

func (u *Unit) IsExpired(now time.Time) bool {
	return !now.Before(u.expiresAt)
}

// ShelfLifeDays is the number of whole days left before expiration, never negative.
func (u *Unit) ShelfLifeDays(now time.Time) int {
	remaining := u.expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Floor(remaining.Hours() / 24))
}

// ShouldRotate flags available stock that is within a week of spoiling.
func (u *Unit) ShouldRotate(now time.Time) bool {
	return u.ShouldRotateWithin(now, RotationThresholdDays)
}

func (u *Unit) ShouldRotateWithin(now time.Time, thresholdDays int) bool {
	return u.status == StatusAvailable && u.ShelfLifeDays(now) <= thresholdDays
}

// IsDispensable reports whether the unit can satisfy a request right now.
func (u *Unit) IsDispensable(now time.Time) bool {
	return u.status == StatusAvailable && !u.IsExpired(now)
}

func (u *Unit) Clone() *Unit {
	c := *u
	return &c
}

func (u *Unit) ID() string           { return u.id }
func (u *Unit) BloodType() BloodType { return u.bloodType }
func (u *Unit) Component() Component { return u.component }
func (u *Unit) DonorID() string      { return u.donorID }
func (u *Unit) HospitalID() string   { return u.hospitalID }
func (u *Unit) LocationID() string   { return u.locationID }
func (u *Unit) DonatedAt() time.Time { return u.donatedAt }
func (u *Unit) ExpiresAt() time.Time { return u.expiresAt }
func (u *Unit) Status() Status       { return u.status }
func (u *Unit) CreatedAt() time.Time { return u.createdAt }
