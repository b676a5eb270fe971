package bootstrap

import (
	"context"
	"log/slog"

	"bloodbank-ops/internal/infra/health"
	"bloodbank-ops/internal/infra/metrics"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

var HealthModule = fx.Module("health",
	fx.Provide(
		NewHealthManager,
		func(m *health.Manager) usecase.Guard { return m },
	),
)

// NewHealthManager connects to the store on start. An exhausted retry budget
// shuts the application down with a non-zero exit code.
func NewHealthManager(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	driver StoreDriver,
	m *metrics.Metrics,
	cfg config.Config,
	logger *slog.Logger,
) *health.Manager {
	manager := health.NewManager(driver, cfg.Store, logger,
		health.WithObserver(m),
		health.WithFatalHandler(func(err error) {
			logger.Error("💀 ストアに再接続できません。アプリケーションを停止します", "error", err)
			if shutdownErr := shutdowner.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
				logger.Error("シャットダウン要求に失敗しました", "error", shutdownErr)
			}
		}),
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("ストアに接続します", "driver", cfg.Store.Driver)
			return manager.Connect(ctx, cfg.Store.URI)
		},
		OnStop: func(ctx context.Context) error {
			return manager.Disconnect(ctx)
		},
	})
	return manager
}
