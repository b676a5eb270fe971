package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/robfig/cron/v3"
)

const (
	TriggerScheduled = "scheduled"
	TriggerImmediate = "immediate"
)

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Scheduler keeps one recurring report job per hospital. Jobs live in the
// store and are re-registered with the cron runner on Start.
type Scheduler struct {
	store    JobRepository
	guard    Guard
	stats    *Statistics
	exporter ReportExporter
	sink     EventSink
	recorder Recorder
	clock    clock.Clock
	logger   *slog.Logger
	locks    *keyedMutex

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

func NewScheduler(
	store JobRepository,
	guard Guard,
	stats *Statistics,
	exporter ReportExporter,
	sink EventSink,
	recorder Recorder,
	clk clock.Clock,
	logger *slog.Logger,
	cfg config.SchedulerConfig,
) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, errs.Mark(errs.Wrapf(err, "load scheduler time zone %q", cfg.TimeZone), errs.ErrValidation)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	cl := cronLogger{logger: logger}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		guard:    guard,
		stats:    stats,
		exporter: exporter,
		sink:     sink,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		locks:    newKeyedMutex(),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		entries: map[string]cron.EntryID{},
		runCtx:  runCtx,
		cancel:  cancel,
	}, nil
}

// Start restores persisted jobs and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	jobs, err := guarded(ctx, s.guard, func(ctx context.Context) ([]report.Job, error) {
		return s.store.ListJobs(ctx)
	})
	if err != nil {
		return errs.Wrap(err, "restore report jobs")
	}
	for _, j := range jobs {
		if err := s.registerLocked(j); err != nil {
			s.logger.Error("report job not restored", "hospital_id", j.HospitalID, "cadence", j.Cadence, "error", err)
		}
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("report scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop halts the cron runner and waits for running reports until ctx ends.
// Safe to call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.cancel()
		return errs.Wrap(ctx.Err(), "wait for running reports")
	}
	s.logger.Info("report scheduler stopped")
	return nil
}

// Schedule sets the cadence for a hospital, replacing any previous job.
// The last generated report survives a reschedule.
func (s *Scheduler) Schedule(ctx context.Context, hospitalID string, cadence report.Cadence) (report.Job, error) {
	job, err := report.NewJob(hospitalID, cadence, s.clock.Now())
	if err != nil {
		return report.Job{}, err
	}

	unlock := s.locks.Lock(hospitalID)
	defer unlock()

	previous, err := guarded(ctx, s.guard, func(ctx context.Context) (report.Job, error) {
		return s.store.GetJob(ctx, hospitalID)
	})
	switch {
	case err == nil:
		job.LastReport = previous.LastReport
		job.LastGeneratedAt = previous.LastGeneratedAt
	case !errs.Is(err, errs.ErrNotFound):
		return report.Job{}, err
	}

	if err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.store.SaveJob(ctx, job)
	}); err != nil {
		return report.Job{}, errs.Wrapf(err, "save report job for %s", hospitalID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.registerLocked(job); err != nil {
		return report.Job{}, err
	}
	s.logger.Info("report scheduled", "hospital_id", hospitalID, "cadence", cadence)
	return job, nil
}

// Unschedule cancels and removes the job of a hospital.
func (s *Scheduler) Unschedule(ctx context.Context, hospitalID string) error {
	unlock := s.locks.Lock(hospitalID)
	defer unlock()

	if err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.store.DeleteJob(ctx, hospitalID)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[hospitalID]; ok {
		s.cron.Remove(id)
		delete(s.entries, hospitalID)
	}
	s.logger.Info("report unscheduled", "hospital_id", hospitalID)
	return nil
}

func (s *Scheduler) Job(ctx context.Context, hospitalID string) (report.Job, error) {
	return guarded(ctx, s.guard, func(ctx context.Context) (report.Job, error) {
		return s.store.GetJob(ctx, hospitalID)
	})
}

func (s *Scheduler) Jobs(ctx context.Context) ([]report.Job, error) {
	return guarded(ctx, s.guard, func(ctx context.Context) ([]report.Job, error) {
		return s.store.ListJobs(ctx)
	})
}

// ActiveEntries is the number of jobs registered with the cron runner.
func (s *Scheduler) ActiveEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextRun is the next firing of the hospital's job. Before Start the cron
// runner has not computed it yet, so it is derived from the cadence.
func (s *Scheduler) NextRun(hospitalID string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[hospitalID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(s.clock.Now().In(s.cron.Location())), true
	}
	return entry.Next, true
}

// GenerateImmediateReport builds and exports a report now. The job and its
// schedule are left untouched.
func (s *Scheduler) GenerateImmediateReport(ctx context.Context, hospitalID string) (report.PerformanceReport, error) {
	r, err := s.generate(ctx, hospitalID, TriggerImmediate)
	if err != nil {
		return report.PerformanceReport{}, err
	}
	return r, nil
}

// RunJob is what the cron entry calls. It records the report on the job.
func (s *Scheduler) RunJob(ctx context.Context, hospitalID string) error {
	r, err := s.generate(ctx, hospitalID, TriggerScheduled)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(hospitalID)
	defer unlock()
	job, err := guarded(ctx, s.guard, func(ctx context.Context) (report.Job, error) {
		return s.store.GetJob(ctx, hospitalID)
	})
	if errs.Is(err, errs.ErrNotFound) {
		// unscheduled while the report was being generated
		return nil
	}
	if err != nil {
		return err
	}
	job.Record(r)
	return s.guard.Do(ctx, func(ctx context.Context) error {
		return s.store.SaveJob(ctx, job)
	})
}

func (s *Scheduler) generate(ctx context.Context, hospitalID, trigger string) (report.PerformanceReport, error) {
	r, err := s.stats.GeneratePerformanceReport(ctx, hospitalID)
	if err != nil {
		s.recorder.ReportGenerated(trigger, false)
		return report.PerformanceReport{}, err
	}

	infos, err := s.exporter.Publish(ctx, r)
	if err != nil {
		s.recorder.ReportGenerated(trigger, false)
		return report.PerformanceReport{}, errs.Wrapf(err, "export report for %s", hospitalID)
	}
	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}

	s.recorder.ReportGenerated(trigger, true)
	s.sink.Publish(alert.New(alert.KindReportGenerated, hospitalID, map[string]any{
		"trigger":     trigger,
		"generatedAt": r.GeneratedAt,
		"exports":     keys,
	}, s.clock.Now()))
	s.logger.Info("performance report generated", "hospital_id", hospitalID, "trigger", trigger)
	return r, nil
}

func (s *Scheduler) registerLocked(job report.Job) error {
	schedule, err := job.Cadence.Schedule()
	if err != nil {
		return err
	}
	if id, ok := s.entries[job.HospitalID]; ok {
		s.cron.Remove(id)
		delete(s.entries, job.HospitalID)
	}
	hospitalID := job.HospitalID
	s.entries[hospitalID] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if err := s.RunJob(s.runCtx, hospitalID); err != nil {
			s.logger.Error("scheduled report failed", "hospital_id", hospitalID, "error", err)
		}
	}))
	return nil
}
