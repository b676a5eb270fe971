package usecase

import (
	"context"
	"strconv"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/pkg/errs"
)

type Statistics struct {
	*Deps
}

func NewStatistics(deps *Deps) *Statistics {
	return &Statistics{Deps: deps}
}

// CalculateStats computes the KPIs of the last periodDays days.
func (s *Statistics) CalculateStats(ctx context.Context, hospitalID string, periodDays int) (report.HospitalStats, error) {
	if periodDays <= 0 {
		return report.HospitalStats{}, errs.Markf(errs.ErrValidation, "period must be at least one day, got %d", periodDays)
	}
	key := cache.NewKey(cache.ClassStatistics, hospitalID, strconv.Itoa(periodDays))
	if v, ok := s.Cache.Get(key); ok {
		return v.(report.HospitalStats), nil
	}
	gen := s.Cache.Generation(cache.ClassStatistics, hospitalID)

	now := s.Clock.Now()
	from := now.AddDate(0, 0, -periodDays)
	events, err := s.events(ctx, hospitalID, periodDays)
	if err != nil {
		return report.HospitalStats{}, err
	}
	stats := report.CalculateStats(events, hospitalID, periodDays, from, now)
	s.Cache.SetIfCurrent(key, stats, gen)
	return stats, nil
}

// GeneratePerformanceReport always reads the log; reports are not cached.
func (s *Statistics) GeneratePerformanceReport(ctx context.Context, hospitalID string) (report.PerformanceReport, error) {
	events, err := s.events(ctx, hospitalID, report.YearDays)
	if err != nil {
		return report.PerformanceReport{}, errs.Wrapf(err, "load events for %s", hospitalID)
	}
	return report.BuildPerformanceReport(events, hospitalID, s.Clock.Now()), nil
}

func (s *Statistics) events(ctx context.Context, hospitalID string, days int) ([]event.Event, error) {
	from := s.Clock.Now().AddDate(0, 0, -days)
	return guarded(ctx, s.Guard, func(ctx context.Context) ([]event.Event, error) {
		return s.Store.ListEvents(ctx, event.Query{HospitalID: hospitalID, From: from})
	})
}
