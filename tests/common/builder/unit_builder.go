//go:build unit || integration

package builder

import (
	"time"

	"bloodbank-ops/internal/domain/unit"
)

var DefaultNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type UnitBuilder struct {
	BloodType  unit.BloodType
	Component  unit.Component
	DonorID    string
	HospitalID string
	LocationID string
	DonatedAt  time.Time
	Now        time.Time
	Status     unit.Status
}

func NewUnitBuilder() *UnitBuilder {
	return &UnitBuilder{
		BloodType:  unit.OPositive,
		Component:  unit.RedCells,
		DonorID:    "donor-0001",
		HospitalID: "hospital-1",
		DonatedAt:  DefaultNow.Add(-48 * time.Hour),
		Now:        DefaultNow,
		Status:     unit.StatusAvailable,
	}
}

func (b *UnitBuilder) With(mutate func(*UnitBuilder)) *UnitBuilder {
	mutate(b)
	return b
}

// BuildDomain goes through unit.New, so the builder fields are validated.
func (b *UnitBuilder) BuildDomain() (*unit.Unit, error) {
	u, err := unit.New(b.BloodType, b.Component, b.DonorID, b.HospitalID, b.DonatedAt, b.Now)
	if err != nil {
		return nil, err
	}
	if b.LocationID != "" {
		u.PlaceIn(b.LocationID)
	}
	return u, nil
}

// BuildReconstructed skips validation and honours Status, for fixtures in
// states unit.New cannot produce.
func (b *UnitBuilder) BuildReconstructed() *unit.Unit {
	donated := b.DonatedAt.UTC()
	return unit.Reconstruct(
		unit.NewID(b.BloodType, b.DonorID, b.Now),
		b.BloodType,
		b.Component,
		b.DonorID,
		b.HospitalID,
		b.LocationID,
		donated,
		donated.Add(b.Component.ShelfLife()),
		b.Status,
		b.Now.UTC(),
	)
}
