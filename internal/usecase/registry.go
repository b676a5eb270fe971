package usecase

import (
	"context"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
)

// Registry owns storage locations and which unit sits where.
type Registry struct {
	*Deps
}

func NewRegistry(deps *Deps) *Registry {
	return &Registry{Deps: deps}
}

func (r *Registry) AddLocation(ctx context.Context, spec storage.Spec) (*storage.Location, error) {
	loc, err := storage.NewLocation(spec, r.Clock.Now())
	if err != nil {
		return nil, err
	}
	unlock := r.Locks.Locations(loc.ID())
	defer unlock()

	if err := r.do(ctx, func(ctx context.Context) error {
		return r.Store.CreateLocation(ctx, loc)
	}); err != nil {
		return nil, errs.Wrapf(err, "add location %s", loc.ID())
	}
	r.Logger.Info("storage location added", "location_id", loc.ID(), "kind", loc.Kind(), "capacity", loc.Capacity())
	return loc, nil
}

// RemoveLocation deletes an empty location.
func (r *Registry) RemoveLocation(ctx context.Context, id string) error {
	unlock := r.Locks.Locations(id)
	defer unlock()

	if _, err := r.location(ctx, id); err != nil {
		return err
	}
	n, err := r.occupied(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return errs.Markf(errs.ErrNotEmpty, "location %s still holds %d units", id, n)
	}
	if err := r.do(ctx, func(ctx context.Context) error {
		return r.Store.DeleteLocation(ctx, id)
	}); err != nil {
		return errs.Wrapf(err, "remove location %s", id)
	}
	r.Logger.Info("storage location removed", "location_id", id)
	return nil
}

func (r *Registry) Location(ctx context.Context, id string) (*storage.Location, error) {
	return r.location(ctx, id)
}

func (r *Registry) Locations(ctx context.Context) ([]*storage.Location, error) {
	return guarded(ctx, r.Guard, func(ctx context.Context) ([]*storage.Location, error) {
		return r.Store.ListLocations(ctx)
	})
}

// AddUnit stores u in the location. A unit not yet known to the ledger is
// saved and logged as a donation. The capacity check and the insert happen
// under the location lock.
func (r *Registry) AddUnit(ctx context.Context, locationID string, u *unit.Unit) error {
	if u.Status().IsTerminal() {
		return errs.Markf(errs.ErrValidation, "unit %s is %s and cannot be stored", u.ID(), u.Status())
	}
	return r.mutate(ctx, u.HospitalID(), []string{locationID}, func(ctx context.Context, tx Repositories) (change, error) {
		existing, err := tx.GetUnit(ctx, u.ID())
		isNew := errs.Is(err, errs.ErrNotFound)
		if err != nil && !isNew {
			return change{}, err
		}
		if !isNew && existing.LocationID() != "" {
			return change{}, errs.Markf(errs.ErrConflict, "unit %s is already stored in %s", u.ID(), existing.LocationID())
		}

		target := u
		if !isNew {
			target = existing
		}
		if err := place(ctx, tx, locationID, target, isNew); err != nil {
			return change{}, err
		}
		u.PlaceIn(locationID)

		c := change{payload: map[string]any{
			"action":     "add",
			"unitId":     u.ID(),
			"bloodType":  u.BloodType(),
			"locationId": locationID,
		}}
		if isNew {
			c.donors = append(c.donors, u.DonorID())
			c.events = append(c.events, event.NewInventoryUpdate(
				u.HospitalID(), u.BloodType(), 1, event.ReasonDonation, u.DonorID(), []string{u.ID()}, r.Clock.Now(),
			))
		}
		return c, nil
	})
}

// place checks the location has room and writes u into it. The caller holds
// the location lock.
func place(ctx context.Context, tx Repositories, locationID string, u *unit.Unit, isNew bool) error {
	if err := checkRoom(ctx, tx, locationID); err != nil {
		return err
	}
	u.PlaceIn(locationID)
	if isNew {
		return tx.SaveUnit(ctx, u)
	}
	return tx.UpdateUnit(ctx, u)
}

func checkRoom(ctx context.Context, tx Repositories, locationID string) error {
	loc, err := tx.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}
	n, err := tx.CountUnitsInLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if !loc.HasRoom(n) {
		return errs.Markf(errs.ErrCapacityExceeded, "location %s is full (%d/%d)", locationID, n, loc.Capacity())
	}
	return nil
}

// RemoveUnit takes a unit out of storage and out of the ledger.
func (r *Registry) RemoveUnit(ctx context.Context, locationID, unitID string) (*unit.Unit, error) {
	u, err := r.unitIn(ctx, locationID, unitID)
	if err != nil {
		return nil, err
	}

	var removed *unit.Unit
	err = r.mutate(ctx, u.HospitalID(), nil, func(ctx context.Context, tx Repositories) (change, error) {
		current, err := storedIn(ctx, tx, locationID, unitID)
		if err != nil {
			return change{}, err
		}
		if err := tx.DeleteUnit(ctx, unitID); err != nil {
			return change{}, err
		}
		removed = current

		c := change{payload: map[string]any{
			"action":     "remove",
			"unitId":     unitID,
			"bloodType":  current.BloodType(),
			"locationId": locationID,
		}}
		if !current.Status().IsTerminal() {
			c.events = append(c.events, event.NewInventoryUpdate(
				current.HospitalID(), current.BloodType(), -1, event.ReasonAdjustment, "", []string{unitID}, r.Clock.Now(),
			))
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// MoveUnit relocates a stored unit. The target's capacity is checked under
// its location lock. Leaving a location never needs its lock.
func (r *Registry) MoveUnit(ctx context.Context, unitID, toLocationID string) (*unit.Unit, error) {
	u, err := r.getUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	var moved *unit.Unit
	err = r.mutate(ctx, u.HospitalID(), []string{toLocationID}, func(ctx context.Context, tx Repositories) (change, error) {
		moved = nil
		current, err := tx.GetUnit(ctx, unitID)
		if err != nil {
			return change{}, err
		}
		from := current.LocationID()
		if from == "" {
			return change{}, errs.Markf(errs.ErrNotFound, "unit %s is not in storage", unitID)
		}
		if from == toLocationID {
			moved = current
			return change{}, nil
		}

		if err := checkRoom(ctx, tx, toLocationID); err != nil {
			return change{}, err
		}
		current.PlaceIn(toLocationID)
		if err := tx.UpdateUnit(ctx, current); err != nil {
			return change{}, err
		}
		moved = current
		return change{payload: map[string]any{
			"action":    "move",
			"unitId":    unitID,
			"bloodType": current.BloodType(),
			"from":      from,
			"to":        toLocationID,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// FindUnit returns a unit that is currently stored somewhere.
func (r *Registry) FindUnit(ctx context.Context, unitID string) (*unit.Unit, error) {
	u, err := r.getUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if u.LocationID() == "" {
		return nil, errs.Markf(errs.ErrNotFound, "unit %s is not in storage", unitID)
	}
	return u, nil
}

func (r *Registry) AvailableCapacity(ctx context.Context, locationID string) (int, error) {
	loc, err := r.location(ctx, locationID)
	if err != nil {
		return 0, err
	}
	n, err := r.occupied(ctx, locationID)
	if err != nil {
		return 0, err
	}
	return loc.AvailableCapacity(n), nil
}

// UnitsNearingExpiration lists stored, not yet consumed units with at most
// thresholdDays of shelf life left, soonest to expire first.
func (r *Registry) UnitsNearingExpiration(ctx context.Context, thresholdDays int) ([]*unit.Unit, error) {
	if thresholdDays < 0 {
		return nil, errs.Markf(errs.ErrValidation, "threshold days must not be negative, got %d", thresholdDays)
	}
	units, err := guarded(ctx, r.Guard, func(ctx context.Context) ([]*unit.Unit, error) {
		return r.Store.ListUnits(ctx, unit.Filter{
			PlacedOnly: true,
			Statuses:   []unit.Status{unit.StatusAvailable, unit.StatusReserved},
		})
	})
	if err != nil {
		return nil, err
	}
	now := r.Clock.Now()
	out := make([]*unit.Unit, 0, len(units))
	for _, u := range units {
		if u.ShelfLifeDays(now) <= thresholdDays {
			out = append(out, u)
		}
	}
	return unit.SortByExpiration(out), nil
}

// ValidateStorageConditions reports every violated invariant keyed by
// location id. Locations without violations are absent. Over-capacity is
// reported as sev1 and left as is.
func (r *Registry) ValidateStorageConditions(ctx context.Context) (map[string][]storage.Violation, error) {
	locs, err := r.Locations(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string][]storage.Violation{}
	for _, loc := range locs {
		n, err := r.occupied(ctx, loc.ID())
		if err != nil {
			return nil, err
		}
		if v := storage.Evaluate(loc, n); len(v) > 0 {
			out[loc.ID()] = v
		}
	}
	return out, nil
}

func (r *Registry) RecordTemperature(ctx context.Context, locationID string, value float64) (*storage.Location, error) {
	unlock := r.Locks.Locations(locationID)
	defer unlock()

	loc, err := r.location(ctx, locationID)
	if err != nil {
		return nil, err
	}
	loc.RecordTemperature(value, r.Clock.Now())
	if err := r.do(ctx, func(ctx context.Context) error {
		return r.Store.UpdateLocation(ctx, loc)
	}); err != nil {
		return nil, errs.Wrapf(err, "record temperature for %s", locationID)
	}
	return loc, nil
}

func (r *Registry) location(ctx context.Context, id string) (*storage.Location, error) {
	return guarded(ctx, r.Guard, func(ctx context.Context) (*storage.Location, error) {
		return r.Store.GetLocation(ctx, id)
	})
}

func (r *Registry) occupied(ctx context.Context, locationID string) (int, error) {
	return guarded(ctx, r.Guard, func(ctx context.Context) (int, error) {
		return r.Store.CountUnitsInLocation(ctx, locationID)
	})
}

func (r *Registry) unitIn(ctx context.Context, locationID, unitID string) (*unit.Unit, error) {
	return guarded(ctx, r.Guard, func(ctx context.Context) (*unit.Unit, error) {
		return storedIn(ctx, r.Store, locationID, unitID)
	})
}

func storedIn(ctx context.Context, repo UnitRepository, locationID, unitID string) (*unit.Unit, error) {
	u, err := repo.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if u.LocationID() != locationID {
		return nil, errs.Markf(errs.ErrNotFound, "unit %s is not in location %s", unitID, locationID)
	}
	return u, nil
}
