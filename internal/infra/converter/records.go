package converter

import (
	"time"

	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
)

// UnitRecord is the persisted shape of a blood unit, shared by every driver.
type UnitRecord struct {
	ID         string    `json:"id"`
	BloodType  string    `json:"bloodType"`
	Component  string    `json:"component"`
	DonorID    string    `json:"donorId"`
	HospitalID string    `json:"hospitalId"`
	LocationID string    `json:"locationId,omitempty"`
	DonatedAt  time.Time `json:"donatedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LocationRecord struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Kind               string    `json:"kind"`
	TargetTemperature  float64   `json:"targetTemperature"`
	CurrentTemperature float64   `json:"currentTemperature"`
	Capacity           int       `json:"capacity"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func UnitToRecord(u *unit.Unit) UnitRecord {
	return UnitRecord{
		ID:         u.ID(),
		BloodType:  u.BloodType().String(),
		Component:  string(u.Component()),
		DonorID:    u.DonorID(),
		HospitalID: u.HospitalID(),
		LocationID: u.LocationID(),
		DonatedAt:  u.DonatedAt().UTC(),
		ExpiresAt:  u.ExpiresAt().UTC(),
		Status:     u.Status().String(),
		CreatedAt:  u.CreatedAt().UTC(),
	}
}

func UnitFromRecord(r UnitRecord) *unit.Unit {
	return unit.Reconstruct(
		r.ID,
		unit.BloodType(r.BloodType),
		unit.Component(r.Component),
		r.DonorID,
		r.HospitalID,
		r.LocationID,
		r.DonatedAt.UTC(),
		r.ExpiresAt.UTC(),
		unit.Status(r.Status),
		r.CreatedAt.UTC(),
	)
}

func LocationToRecord(l *storage.Location) LocationRecord {
	return LocationRecord{
		ID:                 l.ID(),
		Name:               l.Name(),
		Kind:               string(l.Kind()),
		TargetTemperature:  l.TargetTemperature(),
		CurrentTemperature: l.CurrentTemperature(),
		Capacity:           l.Capacity(),
		CreatedAt:          l.CreatedAt().UTC(),
		UpdatedAt:          l.UpdatedAt().UTC(),
	}
}

func LocationFromRecord(r LocationRecord) *storage.Location {
	return storage.ReconstructLocation(
		r.ID,
		r.Name,
		storage.Kind(r.Kind),
		r.TargetTemperature,
		r.CurrentTemperature,
		r.Capacity,
		r.CreatedAt.UTC(),
		r.UpdatedAt.UTC(),
	)
}
