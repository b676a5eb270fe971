package bootstrap

import (
	"log/slog"

	"bloodbank-ops/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
	),
	fx.Invoke(
		logConfig,
	),
)

// logConfig records which drivers were selected. Secrets are never logged.
func logConfig(cfg config.Config, logger *slog.Logger) {
	logger.Info("⚙ 設定を読み込みました",
		"env", cfg.App.Env,
		"store_driver", cfg.Store.Driver,
		"blob_driver", cfg.Blob.Driver,
		"sensor_driver", cfg.App.SensorDriver,
		"monitor_interval", cfg.Monitor.Interval,
		"scheduler_timezone", cfg.Scheduler.TimeZone,
	)
}
