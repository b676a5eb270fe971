package components

import (
	"context"
	"log/slog"

	"bloodbank-ops/internal/infra/metrics"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

// WorkerModule owns the timers. Each worker is started after the store
// connected and stopped before it disconnects.
var WorkerModule = fx.Module("worker",
	fx.Provide(
		NewMonitor,
		NewSweeper,
		NewScheduler,
	),
	fx.Invoke(
		startWorkers,
	),
)

func NewMonitor(
	registry *usecase.Registry,
	sensor usecase.Sensor,
	sink usecase.EventSink,
	m *metrics.Metrics,
	clk clock.Clock,
	logger *slog.Logger,
	cfg config.Config,
) *usecase.Monitor {
	return usecase.NewMonitor(registry, sensor, sink, m, clk, logger, cfg.Monitor)
}

func NewSweeper(deps *usecase.Deps, m *metrics.Metrics, cfg config.Config) *usecase.Sweeper {
	return usecase.NewSweeper(deps, m, cfg.Monitor)
}

func NewScheduler(
	jobs usecase.JobRepository,
	guard usecase.Guard,
	stats *usecase.Statistics,
	exporter usecase.ReportExporter,
	sink usecase.EventSink,
	m *metrics.Metrics,
	clk clock.Clock,
	logger *slog.Logger,
	cfg config.Config,
) (*usecase.Scheduler, error) {
	return usecase.NewScheduler(jobs, guard, stats, exporter, sink, m, clk, logger, cfg.Scheduler)
}

func startWorkers(
	lc fx.Lifecycle,
	monitor *usecase.Monitor,
	sweeper *usecase.Sweeper,
	scheduler *usecase.Scheduler,
	logger *slog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			monitor.Start(ctx)
			sweeper.Start(ctx)
			logger.Info("⏱ ワーカーを起動しました")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			monitor.Stop()
			sweeper.Stop()
			err := scheduler.Stop(ctx)
			logger.Info("ワーカーを停止しました")
			return err
		},
	})
}
