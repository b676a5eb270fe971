//go:build unit || integration

package builder

import (
	"time"

	"bloodbank-ops/internal/domain/storage"
)

type LocationBuilder struct {
	ID                string
	Name              string
	Kind              storage.Kind
	TargetTemperature float64
	Capacity          int
	Now               time.Time
}

func NewLocationBuilder() *LocationBuilder {
	return &LocationBuilder{
		ID:                "fridge-1",
		Name:              "Main refrigerator",
		Kind:              storage.KindRefrigerator,
		TargetTemperature: 4,
		Capacity:          10,
		Now:               DefaultNow,
	}
}

// Freezer switches the defaults to a small freezer.
func (b *LocationBuilder) Freezer() *LocationBuilder {
	b.ID = "freezer-1"
	b.Name = "Plasma freezer"
	b.Kind = storage.KindFreezer
	b.TargetTemperature = -20
	b.Capacity = 2
	return b
}

func (b *LocationBuilder) With(mutate func(*LocationBuilder)) *LocationBuilder {
	mutate(b)
	return b
}

func (b *LocationBuilder) BuildSpec() storage.Spec {
	return storage.Spec{
		ID:                b.ID,
		Name:              b.Name,
		Kind:              b.Kind,
		TargetTemperature: b.TargetTemperature,
		Capacity:          b.Capacity,
	}
}

func (b *LocationBuilder) BuildDomain() (*storage.Location, error) {
	return storage.NewLocation(b.BuildSpec(), b.Now)
}
