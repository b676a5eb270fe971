// Package stream fans alerts out to in-process subscribers. Delivery to
// clients is someone else's job; a slow subscriber just misses alerts.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"bloodbank-ops/internal/domain/alert"
)

const subscriberBuffer = 64

type Stream struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[int]chan alert.Alert
	next int
}

func New(logger *slog.Logger) *Stream {
	return &Stream{
		logger: logger,
		subs:   make(map[int]chan alert.Alert),
	}
}

// Subscribe registers a subscriber. The channel is closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan alert.Alert {
	ch := make(chan alert.Alert, subscriberBuffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish never blocks.
func (s *Stream) Publish(a alert.Alert) {
	s.logger.Info("alert emitted",
		"kind", a.Kind,
		"hospital_id", a.HospitalID,
		"alert_id", a.ID.String(),
	)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- a:
		default:
			s.logger.Warn("alert dropped for slow subscriber", "kind", a.Kind)
		}
	}
}

func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
