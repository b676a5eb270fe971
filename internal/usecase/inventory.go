package usecase

import (
	"context"

	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra/cache"
)

type Level struct {
	BloodType    unit.BloodType
	Available    int
	Reserved     int
	ExpiringSoon int
	Low          bool
}

// Levels is the inventory snapshot of a hospital in AllBloodTypes order.
type Levels struct {
	HospitalID string
	Types      []Level
}

func (l Levels) For(bt unit.BloodType) Level {
	for _, t := range l.Types {
		if t.BloodType == bt {
			return t
		}
	}
	return Level{BloodType: bt}
}

type StockStatus string

const (
	StockCritical     StockStatus = "critical"
	StockBelowOptimal StockStatus = "below_optimal"
	StockHealthy      StockStatus = "healthy"
)

// Recommendation compares current stock with the forecast levels.
type Recommendation struct {
	BloodType    unit.BloodType
	Available    int
	MinimumLevel int
	OptimalLevel int
	// Shortfall is how many units are missing to reach the optimal level.
	Shortfall int
	Status    StockStatus
}

type Inventory struct {
	*Deps
	forecaster   *Forecaster
	rotationDays int
}

func NewInventory(deps *Deps, forecaster *Forecaster, rotationDays int) *Inventory {
	if rotationDays <= 0 {
		rotationDays = unit.RotationThresholdDays
	}
	return &Inventory{Deps: deps, forecaster: forecaster, rotationDays: rotationDays}
}

func (i *Inventory) Levels(ctx context.Context, hospitalID string) (Levels, error) {
	key := cache.NewKey(cache.ClassInventory, hospitalID)
	if v, ok := i.Cache.Get(key); ok {
		return v.(Levels), nil
	}
	gen := i.Cache.Generation(cache.ClassInventory, hospitalID)

	units, err := guarded(ctx, i.Guard, func(ctx context.Context) ([]*unit.Unit, error) {
		return i.Store.ListUnits(ctx, unit.Filter{
			HospitalID: hospitalID,
			Statuses:   []unit.Status{unit.StatusAvailable, unit.StatusReserved},
		})
	})
	if err != nil {
		return Levels{}, err
	}

	now := i.Clock.Now()
	byType := make(map[unit.BloodType]*Level, len(unit.AllBloodTypes))
	out := Levels{HospitalID: hospitalID, Types: make([]Level, len(unit.AllBloodTypes))}
	for idx, bt := range unit.AllBloodTypes {
		out.Types[idx] = Level{BloodType: bt}
		byType[bt] = &out.Types[idx]
	}
	for _, u := range units {
		lvl, ok := byType[u.BloodType()]
		if !ok || u.IsExpired(now) {
			continue
		}
		switch u.Status() {
		case unit.StatusAvailable:
			lvl.Available++
			if u.ShouldRotateWithin(now, i.rotationDays) {
				lvl.ExpiringSoon++
			}
		case unit.StatusReserved:
			lvl.Reserved++
		}
	}
	for idx := range out.Types {
		out.Types[idx].Low = out.Types[idx].Available <= i.Inventory.LowThreshold
	}

	i.Cache.SetIfCurrent(key, out, gen)
	return out, nil
}

// Recommendations pairs the current levels with the demand forecast.
func (i *Inventory) Recommendations(ctx context.Context, hospitalID string) ([]Recommendation, error) {
	levels, err := i.Levels(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	fc, err := i.forecaster.Forecast(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, len(unit.AllBloodTypes))
	for _, bt := range unit.AllBloodTypes {
		p, _ := fc.For(bt)
		rec := Recommendation{
			BloodType:    bt,
			Available:    levels.For(bt).Available,
			MinimumLevel: p.MinimumLevel,
			OptimalLevel: p.OptimalLevel,
		}
		if rec.Available < rec.OptimalLevel {
			rec.Shortfall = rec.OptimalLevel - rec.Available
		}
		switch {
		case rec.Available < rec.MinimumLevel:
			rec.Status = StockCritical
		case rec.Available < rec.OptimalLevel:
			rec.Status = StockBelowOptimal
		default:
			rec.Status = StockHealthy
		}
		out = append(out, rec)
	}
	return out, nil
}
