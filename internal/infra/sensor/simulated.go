// Package sensor holds the temperature sensor drivers.
package sensor

import (
	"context"
	"math/rand/v2"
	"sync"

	"bloodbank-ops/internal/pkg/errs"
)

// TargetLookup resolves the configured target temperature of a location.
type TargetLookup func(ctx context.Context, locationID string) (float64, error)

// Simulated reports the target temperature with a small random walk on top.
// It is the local-run driver when no hardware is attached.
type Simulated struct {
	lookup TargetLookup
	spread float64

	mu     sync.Mutex
	rnd    *rand.Rand
	offset map[string]float64
}

func NewSimulated(lookup TargetLookup, seed uint64) *Simulated {
	return &Simulated{
		lookup: lookup,
		spread: 0.5,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		offset: map[string]float64{},
	}
}

func (s *Simulated) Sample(ctx context.Context, locationID string) (float64, error) {
	target, err := s.lookup(ctx, locationID)
	if err != nil {
		return 0, errs.Wrapf(err, "resolve target for %s", locationID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	step := (s.rnd.Float64()*2 - 1) * s.spread / 2
	next := s.offset[locationID] + step
	if next > s.spread {
		next = s.spread
	} else if next < -s.spread {
		next = -s.spread
	}
	s.offset[locationID] = next
	return target + next, nil
}
