package usecase

import (
	"context"
	"sort"
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/pkg/errs"
)

type IntakeRequest struct {
	BloodType  unit.BloodType
	Component  unit.Component
	DonorID    string
	HospitalID string
	LocationID string
	DonatedAt  time.Time
}

// DonorSummary is the cached answer of a donor search.
type DonorSummary struct {
	DonorID       string
	Donations     int
	Hospitals     []string
	FirstDonation time.Time
	LastDonation  time.Time
}

// Ledger follows individual units from intake until they are used or
// disposed of.
type Ledger struct {
	*Deps
	registry *Registry
}

func NewLedger(deps *Deps, registry *Registry) *Ledger {
	return &Ledger{Deps: deps, registry: registry}
}

// Intake registers a donation and stores the new unit.
func (l *Ledger) Intake(ctx context.Context, req IntakeRequest) (*unit.Unit, error) {
	u, err := unit.New(req.BloodType, req.Component, req.DonorID, req.HospitalID, req.DonatedAt, l.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := l.registry.AddUnit(ctx, req.LocationID, u); err != nil {
		return nil, errs.Wrapf(err, "intake unit for donor %s", req.DonorID)
	}
	l.Logger.Info("unit received",
		"unit_id", u.ID(),
		"hospital_id", u.HospitalID(),
		"blood_type", u.BloodType(),
		"expires_at", u.ExpiresAt(),
	)
	return u, nil
}

func (l *Ledger) Get(ctx context.Context, unitID string) (*unit.Unit, error) {
	return l.getUnit(ctx, unitID)
}

// MarkStatus applies a monotonic status change. A used unit leaves the
// ledger; an expired one stays until it is disposed of.
func (l *Ledger) MarkStatus(ctx context.Context, unitID string, next unit.Status) (*unit.Unit, error) {
	u, err := l.getUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	var out *unit.Unit
	err = l.mutate(ctx, u.HospitalID(), nil, func(ctx context.Context, tx Repositories) (change, error) {
		current, err := tx.GetUnit(ctx, unitID)
		if err != nil {
			return change{}, err
		}
		if err := current.TransitionTo(next); err != nil {
			return change{}, err
		}

		var c change
		now := l.Clock.Now()
		switch next {
		case unit.StatusUsed:
			if err := tx.DeleteUnit(ctx, unitID); err != nil {
				return change{}, err
			}
			c.events = append(c.events, event.NewInventoryUpdate(
				current.HospitalID(), current.BloodType(), -1, event.ReasonUsage, "", []string{unitID}, now,
			))
		case unit.StatusExpired:
			if err := tx.UpdateUnit(ctx, current); err != nil {
				return change{}, err
			}
			c.events = append(c.events, event.NewInventoryUpdate(
				current.HospitalID(), current.BloodType(), -1, event.ReasonExpiration, "", []string{unitID}, now,
			))
		default:
			if err := tx.UpdateUnit(ctx, current); err != nil {
				return change{}, err
			}
		}
		c.payload = map[string]any{
			"action":    "status",
			"unitId":    unitID,
			"bloodType": current.BloodType(),
			"status":    next,
		}
		out = current
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) Move(ctx context.Context, unitID, toLocationID string) (*unit.Unit, error) {
	return l.registry.MoveUnit(ctx, unitID, toLocationID)
}

// Dispose removes a unit for good. An expired unit was already counted as
// wastage by the expiry that marked it; anything else is expired first and
// logged as a disposal.
func (l *Ledger) Dispose(ctx context.Context, unitID string) error {
	u, err := l.getUnit(ctx, unitID)
	if err != nil {
		return err
	}

	return l.mutate(ctx, u.HospitalID(), nil, func(ctx context.Context, tx Repositories) (change, error) {
		current, err := tx.GetUnit(ctx, unitID)
		if err != nil {
			return change{}, err
		}
		var c change
		if current.Status() != unit.StatusExpired {
			if err := current.TransitionTo(unit.StatusExpired); err != nil {
				return change{}, err
			}
			c.events = append(c.events, event.NewInventoryUpdate(
				current.HospitalID(), current.BloodType(), -1, event.ReasonDisposal, "", []string{unitID}, l.Clock.Now(),
			))
		}
		if err := tx.DeleteUnit(ctx, unitID); err != nil {
			return change{}, err
		}
		c.payload = map[string]any{
			"action":     "dispose",
			"unitId":     unitID,
			"bloodType":  current.BloodType(),
			"locationId": current.LocationID(),
		}
		return c, nil
	})
}

// DonorHistory summarises every donation a donor made, across hospitals.
func (l *Ledger) DonorHistory(ctx context.Context, donorID string) (DonorSummary, error) {
	key := cache.NewKey(cache.ClassDonorSearch, donorID)
	if v, ok := l.Cache.Get(key); ok {
		return v.(DonorSummary), nil
	}
	gen := l.Cache.Generation(cache.ClassDonorSearch, donorID)

	events, err := guarded(ctx, l.Guard, func(ctx context.Context) ([]event.Event, error) {
		return l.Store.ListEvents(ctx, event.Query{Kinds: []event.Kind{event.KindInventoryUpdate}})
	})
	if err != nil {
		return DonorSummary{}, err
	}

	summary := DonorSummary{DonorID: donorID}
	hospitals := map[string]struct{}{}
	for _, e := range events {
		if e.Reason != event.ReasonDonation || e.DonorID != donorID {
			continue
		}
		summary.Donations++
		hospitals[e.HospitalID] = struct{}{}
		if summary.FirstDonation.IsZero() {
			summary.FirstDonation = e.OccurredAt
		}
		summary.LastDonation = e.OccurredAt
	}
	for h := range hospitals {
		summary.Hospitals = append(summary.Hospitals, h)
	}
	sort.Strings(summary.Hospitals)

	l.Cache.SetIfCurrent(key, summary, gen)
	return summary, nil
}
