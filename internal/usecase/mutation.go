package usecase

import (
	"context"
	"log/slog"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
)

// Deps are the collaborators shared by every inventory use case.
type Deps struct {
	Store     Store
	Guard     Guard
	Cache     Cache
	Sink      EventSink
	Clock     clock.Clock
	Logger    *slog.Logger
	Locks     *Locks
	Inventory config.InventoryConfig
}

// change is what a mutation reports back: events to append and, when the
// stock changed, the payload of the inventory_changed alert.
type change struct {
	events  []event.Event
	payload map[string]any
	// donors whose search results the events make stale
	donors []string
}

// mutate runs fn under the hospital lock and then the locks of locationIDs.
// fn and the appends of the events it reports share one store transaction,
// so a failure anywhere leaves neither rows nor events behind. fn may run
// again when the guard retries. The hospital's derived cache entries are
// invalidated before the lock is released, whether fn failed or not.
// Alerts are published after the lock is gone.
func (d *Deps) mutate(ctx context.Context, hospitalID string, locationIDs []string, fn func(ctx context.Context, tx Repositories) (change, error)) error {
	unlock := d.Locks.Hospital(hospitalID)
	alerts, err := d.mutateLocked(ctx, hospitalID, locationIDs, fn)
	unlock()

	for _, a := range alerts {
		d.Sink.Publish(a)
	}
	return err
}

func (d *Deps) mutateLocked(ctx context.Context, hospitalID string, locationIDs []string, fn func(ctx context.Context, tx Repositories) (change, error)) ([]alert.Alert, error) {
	defer d.Cache.InvalidateHospital(hospitalID)

	before, err := d.availableCounts(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	unlockLocations := d.Locks.Locations(locationIDs...)
	var c change
	err = d.Guard.Do(ctx, func(ctx context.Context) error {
		return d.Store.RunInTx(ctx, func(ctx context.Context, tx Repositories) error {
			var err error
			if c, err = fn(ctx, tx); err != nil {
				return err
			}
			for _, e := range c.events {
				if err := tx.AppendEvent(ctx, e); err != nil {
					return errs.Wrapf(err, "append %s event", e.Kind)
				}
			}
			return nil
		})
	})
	unlockLocations()
	if err != nil {
		return nil, err
	}

	for _, donorID := range c.donors {
		d.Cache.Invalidate(cache.ClassDonorSearch, donorID)
	}

	now := d.Clock.Now()
	var alerts []alert.Alert
	if c.payload != nil {
		alerts = append(alerts, alert.New(alert.KindInventoryChanged, hospitalID, c.payload, now))
	}

	after, err := d.availableCounts(ctx, hospitalID)
	if err != nil {
		d.Logger.Warn("low inventory check skipped", "hospital_id", hospitalID, "error", err)
		return alerts, nil
	}
	threshold := d.Inventory.LowThreshold
	for _, bt := range unit.AllBloodTypes {
		if before[bt] > threshold && after[bt] <= threshold {
			alerts = append(alerts, alert.New(alert.KindLowInventory, hospitalID, map[string]any{
				"bloodType": bt,
				"available": after[bt],
				"threshold": threshold,
			}, now))
		}
	}
	return alerts, nil
}

// availableCounts counts dispensable units per blood type.
func (d *Deps) availableCounts(ctx context.Context, hospitalID string) (map[unit.BloodType]int, error) {
	units, err := guarded(ctx, d.Guard, func(ctx context.Context) ([]*unit.Unit, error) {
		return d.Store.ListUnits(ctx, unit.Filter{
			HospitalID: hospitalID,
			Statuses:   []unit.Status{unit.StatusAvailable},
		})
	})
	if err != nil {
		return nil, err
	}
	now := d.Clock.Now()
	counts := make(map[unit.BloodType]int, len(unit.AllBloodTypes))
	for _, u := range units {
		if u.IsDispensable(now) {
			counts[u.BloodType()]++
		}
	}
	return counts, nil
}

func (d *Deps) getUnit(ctx context.Context, id string) (*unit.Unit, error) {
	return guarded(ctx, d.Guard, func(ctx context.Context) (*unit.Unit, error) {
		return d.Store.GetUnit(ctx, id)
	})
}

func (d *Deps) do(ctx context.Context, op func(ctx context.Context) error) error {
	return d.Guard.Do(ctx, op)
}
