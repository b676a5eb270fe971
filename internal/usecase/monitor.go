package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/temperature"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
)

type SampleResult struct {
	Sampled    int
	Failed     int
	Violations map[string][]storage.Violation
	Anomalies  []temperature.Anomaly
}

// Monitor samples every storage location, keeps a rolling window per
// location and raises alerts for unsafe conditions.
type Monitor struct {
	registry *Registry
	sensor   Sensor
	sink     EventSink
	recorder Recorder
	clock    clock.Clock
	logger   *slog.Logger
	runner   *Runner

	mu      sync.Mutex
	windows map[string]*temperature.Window
}

func NewMonitor(
	registry *Registry,
	sensor Sensor,
	sink EventSink,
	recorder Recorder,
	clk clock.Clock,
	logger *slog.Logger,
	cfg config.MonitorConfig,
) *Monitor {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	m := &Monitor{
		registry: registry,
		sensor:   sensor,
		sink:     sink,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		windows:  map[string]*temperature.Window{},
	}
	m.runner = NewRunner("temperature-monitor", cfg.Interval, logger, func(ctx context.Context) {
		if _, err := m.SampleOnce(ctx); err != nil {
			m.logger.Error("temperature sampling failed", "error", err)
		}
	})
	return m
}

func (m *Monitor) Start(ctx context.Context) { m.runner.Start(ctx) }

func (m *Monitor) Stop() { m.runner.Stop() }

// SampleOnce runs one monitoring pass. A failing sensor skips its location
// without aborting the pass.
func (m *Monitor) SampleOnce(ctx context.Context) (SampleResult, error) {
	locs, err := m.registry.Locations(ctx)
	if err != nil {
		return SampleResult{}, errs.Wrap(err, "list storage locations")
	}
	m.prune(locs)

	var res SampleResult
	for _, loc := range locs {
		value, err := m.sensor.Sample(ctx, loc.ID())
		if err != nil {
			res.Failed++
			m.logger.Warn("sensor read failed", "location_id", loc.ID(), "error", err)
			continue
		}
		if err := m.Record(ctx, loc.ID(), value); err != nil {
			res.Failed++
			m.logger.Warn("temperature not recorded", "location_id", loc.ID(), "error", err)
			continue
		}
		res.Sampled++
	}

	res.Violations, err = m.registry.ValidateStorageConditions(ctx)
	if err != nil {
		return res, errs.Wrap(err, "validate storage conditions")
	}
	now := m.clock.Now()
	for locationID, violations := range res.Violations {
		for _, v := range violations {
			m.publishViolation(locationID, v, now)
		}
	}

	for _, loc := range locs {
		for _, a := range m.DetectAnomalies(loc.ID()) {
			res.Anomalies = append(res.Anomalies, a)
			m.recorder.AnomalyDetected(a.LocationID, string(a.Kind))
			m.sink.Publish(alert.New(alert.KindTemperatureAnomaly, "", map[string]any{
				"locationId": a.LocationID,
				"anomaly":    a.Kind,
				"observed":   a.Observed,
				"threshold":  a.Threshold,
			}, now))
		}
	}
	return res, nil
}

func (m *Monitor) publishViolation(locationID string, v storage.Violation, now time.Time) {
	kind := alert.KindTemperatureAnomaly
	if !v.IsTemperature() {
		kind = alert.KindStorageViolation
		m.logger.Error("storage invariant broken", "location_id", locationID, "code", v.Code, "message", v.Message)
	} else {
		m.logger.Warn("storage temperature out of range", "location_id", locationID, "code", v.Code)
	}
	m.sink.Publish(alert.New(kind, "", map[string]any{
		"locationId": locationID,
		"code":       v.Code,
		"severity":   v.Severity,
		"message":    v.Message,
	}, now))
}

// Record appends a reading and stores it as the location's current
// temperature.
func (m *Monitor) Record(ctx context.Context, locationID string, value float64) error {
	if _, err := m.registry.RecordTemperature(ctx, locationID, value); err != nil {
		return err
	}
	reading := temperature.Reading{LocationID: locationID, At: m.clock.Now(), Value: value}

	m.mu.Lock()
	w, ok := m.windows[locationID]
	if !ok {
		w = temperature.NewWindow(temperature.WindowSize)
		m.windows[locationID] = w
	}
	w.Append(reading)
	m.mu.Unlock()

	m.recorder.TemperatureObserved(locationID, value)
	return nil
}

// TemperatureStats summarises the retained window of a location.
func (m *Monitor) TemperatureStats(locationID string) (temperature.Stats, error) {
	stats, ok := temperature.ComputeStats(m.readings(locationID))
	if !ok {
		return temperature.Stats{}, errs.Markf(errs.ErrNotFound, "no temperature readings for location %s", locationID)
	}
	return stats, nil
}

func (m *Monitor) DetectAnomalies(locationID string) []temperature.Anomaly {
	return temperature.DetectAnomalies(locationID, m.readings(locationID))
}

func (m *Monitor) readings(locationID string) []temperature.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[locationID]
	if !ok {
		return nil
	}
	return w.Readings()
}

// prune drops the windows of locations that no longer exist.
func (m *Monitor) prune(locs []*storage.Location) {
	live := make(map[string]struct{}, len(locs))
	for _, l := range locs {
		live[l.ID()] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.windows {
		if _, ok := live[id]; !ok {
			delete(m.windows, id)
		}
	}
}
