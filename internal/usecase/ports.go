package usecase

import (
	"context"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra/blob"
	"bloodbank-ops/internal/infra/cache"
)

//go:generate mockgen -destination=../../tests/mock/usecase/ports.go -package=usecasemock bloodbank-ops/internal/usecase EventSink,Guard,JobRepository,Recorder,ReportExporter,Sensor

type UnitRepository interface {
	// SaveUnit inserts a new unit; Conflict if the id exists.
	SaveUnit(ctx context.Context, u *unit.Unit) error
	UpdateUnit(ctx context.Context, u *unit.Unit) error
	DeleteUnit(ctx context.Context, id string) error
	GetUnit(ctx context.Context, id string) (*unit.Unit, error)
	ListUnits(ctx context.Context, filter unit.Filter) ([]*unit.Unit, error)
	CountUnitsInLocation(ctx context.Context, locationID string) (int, error)
}

type LocationRepository interface {
	CreateLocation(ctx context.Context, l *storage.Location) error
	UpdateLocation(ctx context.Context, l *storage.Location) error
	DeleteLocation(ctx context.Context, id string) error
	GetLocation(ctx context.Context, id string) (*storage.Location, error)
	ListLocations(ctx context.Context) ([]*storage.Location, error)
}

type EventRepository interface {
	AppendEvent(ctx context.Context, e event.Event) error
	ListEvents(ctx context.Context, q event.Query) ([]event.Event, error)
}

type JobRepository interface {
	// SaveJob upserts by hospital id.
	SaveJob(ctx context.Context, j report.Job) error
	DeleteJob(ctx context.Context, hospitalID string) error
	GetJob(ctx context.Context, hospitalID string) (report.Job, error)
	ListJobs(ctx context.Context) ([]report.Job, error)
}

// Repositories is everything a single unit of work can read and write.
type Repositories interface {
	UnitRepository
	LocationRepository
	EventRepository
	JobRepository
}

// Store is the persistence port. Implementations report failures marked with
// errs.ErrStoreUnavailable, ErrNotFound or ErrConflict.
type Store interface {
	Repositories
	// RunInTx hands fn repositories bound to one transaction. Its writes are
	// committed together when fn returns nil and discarded otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// Guard is the only path to the store. It owns reconnect and retry.
type Guard interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

type EventSink interface {
	Publish(a alert.Alert)
}

// ReportExporter keeps the latest rendered copy of a report.
type ReportExporter interface {
	Publish(ctx context.Context, r report.PerformanceReport) ([]blob.Info, error)
}

type Sensor interface {
	Sample(ctx context.Context, locationID string) (float64, error)
}

// Cache is the subset of the inventory cache the use cases depend on.
type Cache interface {
	Get(key cache.Key) (any, bool)
	Generation(class cache.Class, entityID string) uint64
	SetIfCurrent(key cache.Key, value any, gen uint64) bool
	Invalidate(class cache.Class, entityID string)
	InvalidateHospital(hospitalID string)
}

// Recorder receives operational measurements. Implemented by infra/metrics.
type Recorder interface {
	TemperatureObserved(locationID string, celsius float64)
	AnomalyDetected(locationID, kind string)
	ReportGenerated(trigger string, success bool)
	UnitsExpired(n int)
}

type nopRecorder struct{}

func (nopRecorder) TemperatureObserved(string, float64) {}
func (nopRecorder) AnomalyDetected(string, string)      {}
func (nopRecorder) ReportGenerated(string, bool)        {}
func (nopRecorder) UnitsExpired(int)                    {}

// guarded runs fn through g and returns its value.
func guarded[T any](ctx context.Context, g Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
