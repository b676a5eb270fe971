package usecase

import (
	"context"
	"math/rand/v2"
	"sync"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/forecast"
	"bloodbank-ops/internal/infra/cache"
)

// lockedSource lets concurrent forecasts share one generator.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandSource(seed uint64) forecast.Source {
	return &lockedSource{rnd: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

type Forecaster struct {
	*Deps
	source forecast.Source
}

func NewForecaster(deps *Deps, source forecast.Source) *Forecaster {
	return &Forecaster{Deps: deps, source: source}
}

// Forecast predicts per-type demand from the last 30 days of requests.
func (f *Forecaster) Forecast(ctx context.Context, hospitalID string) (forecast.Forecast, error) {
	key := cache.NewKey(cache.ClassForecast, hospitalID)
	if v, ok := f.Cache.Get(key); ok {
		return v.(forecast.Forecast), nil
	}
	gen := f.Cache.Generation(cache.ClassForecast, hospitalID)

	now := f.Clock.Now()
	from, to := forecast.Window(now)
	requests, err := guarded(ctx, f.Guard, func(ctx context.Context) ([]event.Event, error) {
		return f.Store.ListEvents(ctx, event.Query{
			HospitalID: hospitalID,
			Kinds:      event.RequestKinds,
			From:       from,
			To:         to,
		})
	})
	if err != nil {
		return forecast.Forecast{}, err
	}

	result := forecast.Build(hospitalID, requests, now, f.source)
	f.Cache.SetIfCurrent(key, result, gen)
	return result, nil
}
