package usecase

import (
	"context"
	"sort"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
)

type SweepResult struct {
	Expired     int
	RotationDue int
}

// Sweeper expires units past their expiration and flags the ones that
// should be rotated out soon.
type Sweeper struct {
	*Deps
	recorder     Recorder
	rotationDays int
	runner       *Runner
}

func NewSweeper(deps *Deps, recorder Recorder, cfg config.MonitorConfig) *Sweeper {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	days := cfg.RotationThresholdDays
	if days <= 0 {
		days = unit.RotationThresholdDays
	}
	s := &Sweeper{Deps: deps, recorder: recorder, rotationDays: days}
	s.runner = NewRunner("expiry-sweeper", cfg.ExpirySweepInterval, deps.Logger, func(ctx context.Context) {
		if _, err := s.Sweep(ctx); err != nil {
			s.Logger.Error("expiry sweep failed", "error", err)
		}
	})
	return s
}

func (s *Sweeper) Start(ctx context.Context) { s.runner.Start(ctx) }

func (s *Sweeper) Stop() { s.runner.Stop() }

func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	units, err := guarded(ctx, s.Guard, func(ctx context.Context) ([]*unit.Unit, error) {
		return s.Store.ListUnits(ctx, unit.Filter{
			Statuses: []unit.Status{unit.StatusAvailable, unit.StatusReserved},
		})
	})
	if err != nil {
		return SweepResult{}, errs.Wrap(err, "list units for expiry sweep")
	}

	now := s.Clock.Now()
	expiring := map[string]bool{}
	rotation := map[string][]*unit.Unit{}
	for _, u := range units {
		switch {
		case u.IsExpired(now):
			expiring[u.HospitalID()] = true
		case u.ShouldRotateWithin(now, s.rotationDays):
			rotation[u.HospitalID()] = append(rotation[u.HospitalID()], u)
		}
	}

	var res SweepResult
	for _, hospitalID := range sortedKeys(expiring) {
		n, err := s.expireHospital(ctx, hospitalID)
		res.Expired += n
		if err != nil {
			return res, errs.Wrapf(err, "expire units of %s", hospitalID)
		}
	}
	s.recorder.UnitsExpired(res.Expired)

	for _, hospitalID := range sortedKeys(rotation) {
		due := unit.SortByExpiration(rotation[hospitalID])
		ids := make([]string, len(due))
		for i, u := range due {
			ids[i] = u.ID()
		}
		res.RotationDue += len(due)
		s.Sink.Publish(alert.New(alert.KindRotationDue, hospitalID, map[string]any{
			"unitIds":       ids,
			"thresholdDays": s.rotationDays,
		}, now))
	}

	if res.Expired > 0 || res.RotationDue > 0 {
		s.Logger.Info("expiry sweep finished", "expired", res.Expired, "rotation_due", res.RotationDue)
	}
	return res, nil
}

// expireHospital re-reads the hospital's stock under its lock so units
// consumed since the scan are left alone.
func (s *Sweeper) expireHospital(ctx context.Context, hospitalID string) (int, error) {
	var expired int
	err := s.mutate(ctx, hospitalID, nil, func(ctx context.Context, tx Repositories) (change, error) {
		expired = 0
		units, err := tx.ListUnits(ctx, unit.Filter{
			HospitalID: hospitalID,
			Statuses:   []unit.Status{unit.StatusAvailable, unit.StatusReserved},
		})
		if err != nil {
			return change{}, err
		}

		now := s.Clock.Now()
		byType := map[unit.BloodType][]string{}
		for _, u := range units {
			if !u.IsExpired(now) {
				continue
			}
			if err := u.TransitionTo(unit.StatusExpired); err != nil {
				return change{}, err
			}
			if err := tx.UpdateUnit(ctx, u); err != nil {
				return change{}, err
			}
			byType[u.BloodType()] = append(byType[u.BloodType()], u.ID())
			expired++
		}
		if expired == 0 {
			return change{}, nil
		}

		var c change
		for _, bt := range unit.AllBloodTypes {
			ids := byType[bt]
			if len(ids) == 0 {
				continue
			}
			c.events = append(c.events, event.NewInventoryUpdate(hospitalID, bt, -len(ids), event.ReasonExpiration, "", ids, now))
		}
		c.payload = map[string]any{"action": "expire", "count": expired}
		return c, nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
