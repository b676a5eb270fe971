// Package memory is the in-process store driver used for local runs and tests.
package memory

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra"
	"bloodbank-ops/internal/infra/converter"
	"bloodbank-ops/internal/usecase"
)

type Store struct {
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	offline   bool
	data      tables
}

// tables holds the rows. Its methods assume the caller holds Store.mu.
type tables struct {
	logger    *slog.Logger
	units     map[string]converter.UnitRecord
	locations map[string]converter.LocationRecord
	events    []event.Event
	jobs      map[string]report.Job
}

func New(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		data: tables{
			logger:    logger,
			units:     map[string]converter.UnitRecord{},
			locations: map[string]converter.LocationRecord{},
			jobs:      map[string]report.Job{},
		},
	}
}

// SetOffline simulates a dropped connection. While offline every call fails
// with an UNAVAILABLE repository error and Connect is refused.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
	if offline {
		s.connected = false
	}
}

func (s *Store) Connect(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "memory store offline", nil)
	}
	s.connected = true
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkLocked()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *Store) checkLocked() error {
	if s.offline || !s.connected {
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "memory store not connected", nil)
	}
	return nil
}

// RunInTx holds the write lock for the whole of fn and puts the previous rows
// back if fn fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx usecase.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}

	saved := tables{
		logger:    s.data.logger,
		units:     maps.Clone(s.data.units),
		locations: maps.Clone(s.data.locations),
		events:    s.data.events[:len(s.data.events):len(s.data.events)],
		jobs:      maps.Clone(s.data.jobs),
	}
	if err := fn(ctx, &s.data); err != nil {
		s.data = saved
		return err
	}
	return nil
}

func (s *Store) read(fn func(t *tables) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	return fn(&s.data)
}

func (s *Store) write(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	return fn(&s.data)
}

func (s *Store) SaveUnit(ctx context.Context, u *unit.Unit) error {
	return s.write(func(t *tables) error { return t.SaveUnit(ctx, u) })
}

func (s *Store) UpdateUnit(ctx context.Context, u *unit.Unit) error {
	return s.write(func(t *tables) error { return t.UpdateUnit(ctx, u) })
}

func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	return s.write(func(t *tables) error { return t.DeleteUnit(ctx, id) })
}

func (s *Store) GetUnit(ctx context.Context, id string) (u *unit.Unit, err error) {
	err = s.read(func(t *tables) error {
		u, err = t.GetUnit(ctx, id)
		return err
	})
	return u, err
}

func (s *Store) ListUnits(ctx context.Context, filter unit.Filter) (out []*unit.Unit, err error) {
	err = s.read(func(t *tables) error {
		out, err = t.ListUnits(ctx, filter)
		return err
	})
	return out, err
}

func (s *Store) CountUnitsInLocation(ctx context.Context, locationID string) (n int, err error) {
	err = s.read(func(t *tables) error {
		n, err = t.CountUnitsInLocation(ctx, locationID)
		return err
	})
	return n, err
}

func (s *Store) CreateLocation(ctx context.Context, l *storage.Location) error {
	return s.write(func(t *tables) error { return t.CreateLocation(ctx, l) })
}

func (s *Store) UpdateLocation(ctx context.Context, l *storage.Location) error {
	return s.write(func(t *tables) error { return t.UpdateLocation(ctx, l) })
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	return s.write(func(t *tables) error { return t.DeleteLocation(ctx, id) })
}

func (s *Store) GetLocation(ctx context.Context, id string) (l *storage.Location, err error) {
	err = s.read(func(t *tables) error {
		l, err = t.GetLocation(ctx, id)
		return err
	})
	return l, err
}

func (s *Store) ListLocations(ctx context.Context) (out []*storage.Location, err error) {
	err = s.read(func(t *tables) error {
		out, err = t.ListLocations(ctx)
		return err
	})
	return out, err
}

func (s *Store) AppendEvent(ctx context.Context, e event.Event) error {
	return s.write(func(t *tables) error { return t.AppendEvent(ctx, e) })
}

func (s *Store) ListEvents(ctx context.Context, q event.Query) (out []event.Event, err error) {
	err = s.read(func(t *tables) error {
		out, err = t.ListEvents(ctx, q)
		return err
	})
	return out, err
}

func (s *Store) SaveJob(ctx context.Context, j report.Job) error {
	return s.write(func(t *tables) error { return t.SaveJob(ctx, j) })
}

func (s *Store) DeleteJob(ctx context.Context, hospitalID string) error {
	return s.write(func(t *tables) error { return t.DeleteJob(ctx, hospitalID) })
}

func (s *Store) GetJob(ctx context.Context, hospitalID string) (j report.Job, err error) {
	err = s.read(func(t *tables) error {
		j, err = t.GetJob(ctx, hospitalID)
		return err
	})
	return j, err
}

func (s *Store) ListJobs(ctx context.Context) (out []report.Job, err error) {
	err = s.read(func(t *tables) error {
		out, err = t.ListJobs(ctx)
		return err
	})
	return out, err
}

func (t *tables) SaveUnit(_ context.Context, u *unit.Unit) error {
	if _, exists := t.units[u.ID()]; exists {
		return infra.WrapRepoErr(t.logger, infra.KindConflict, "unit "+u.ID()+" already exists", nil)
	}
	t.units[u.ID()] = converter.UnitToRecord(u)
	return nil
}

func (t *tables) UpdateUnit(_ context.Context, u *unit.Unit) error {
	if _, exists := t.units[u.ID()]; !exists {
		return infra.WrapRepoErr(t.logger, infra.KindNotFound, "unit "+u.ID()+" not found", nil)
	}
	t.units[u.ID()] = converter.UnitToRecord(u)
	return nil
}

func (t *tables) DeleteUnit(_ context.Context, id string) error {
	if _, exists := t.units[id]; !exists {
		return infra.WrapRepoErr(t.logger, infra.KindNotFound, "unit "+id+" not found", nil)
	}
	delete(t.units, id)
	return nil
}

func (t *tables) GetUnit(_ context.Context, id string) (*unit.Unit, error) {
	rec, ok := t.units[id]
	if !ok {
		return nil, infra.WrapRepoErr(t.logger, infra.KindNotFound, "unit "+id+" not found", nil)
	}
	return converter.UnitFromRecord(rec), nil
}

func (t *tables) ListUnits(_ context.Context, filter unit.Filter) ([]*unit.Unit, error) {
	out := make([]*unit.Unit, 0, len(t.units))
	for _, rec := range t.units {
		u := converter.UnitFromRecord(rec)
		if filter.Matches(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (t *tables) CountUnitsInLocation(_ context.Context, locationID string) (int, error) {
	n := 0
	for _, rec := range t.units {
		if rec.LocationID == locationID {
			n++
		}
	}
	return n, nil
}

func (t *tables) CreateLocation(_ context.Context, l *storage.Location) error {
	if _, exists := t.locations[l.ID()]; exists {
		return infra.WrapRepoErr(t.logger, infra.KindConflict, "location "+l.ID()+" already exists", nil)
	}
	t.locations[l.ID()] = converter.LocationToRecord(l)
	return nil
}

func (t *tables) UpdateLocation(_ context.Context, l *storage.Location) error {
	if _, exists := t.locations[l.ID()]; !exists {
		return infra.WrapRepoErr(t.logger, infra.KindNotFound, "location "+l.ID()+" not found", nil)
	}
	t.locations[l.ID()] = converter.LocationToRecord(l)
	return nil
}

func (t *tables) DeleteLocation(_ context.Context, id string) error {
	if _, exists := t.locations[id]; !exists {
		return infra.WrapRepoErr(t.logger, infra.KindNotFound, "location "+id+" not found", nil)
	}
	delete(t.locations, id)
	return nil
}

func (t *tables) GetLocation(_ context.Context, id string) (*storage.Location, error) {
	rec, ok := t.locations[id]
	if !ok {
		return nil, infra.WrapRepoErr(t.logger, infra.KindNotFound, "location "+id+" not found", nil)
	}
	return converter.LocationFromRecord(rec), nil
}

func (t *tables) ListLocations(_ context.Context) ([]*storage.Location, error) {
	out := make([]*storage.Location, 0, len(t.locations))
	for _, rec := range t.locations {
		out = append(out, converter.LocationFromRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (t *tables) AppendEvent(_ context.Context, e event.Event) error {
	t.events = append(t.events, e.Clone())
	return nil
}

func (t *tables) ListEvents(_ context.Context, q event.Query) ([]event.Event, error) {
	matched := event.Filter(t.events, q)
	for i := range matched {
		matched[i] = matched[i].Clone()
	}
	return matched, nil
}

func (t *tables) SaveJob(_ context.Context, j report.Job) error {
	t.jobs[j.HospitalID] = j.Clone()
	return nil
}

func (t *tables) DeleteJob(_ context.Context, hospitalID string) error {
	if _, ok := t.jobs[hospitalID]; !ok {
		return infra.WrapRepoErr(t.logger, infra.KindNotFound, "report job for "+hospitalID+" not found", nil)
	}
	delete(t.jobs, hospitalID)
	return nil
}

func (t *tables) GetJob(_ context.Context, hospitalID string) (report.Job, error) {
	j, ok := t.jobs[hospitalID]
	if !ok {
		return report.Job{}, infra.WrapRepoErr(t.logger, infra.KindNotFound, "report job for "+hospitalID+" not found", nil)
	}
	return j.Clone(), nil
}

func (t *tables) ListJobs(_ context.Context) ([]report.Job, error) {
	out := make([]report.Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HospitalID < out[j].HospitalID })
	return out, nil
}
