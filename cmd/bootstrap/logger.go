package bootstrap

import (
	"log/slog"

	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/logger"

	"go.uber.org/fx"
)

var LoggerModule = fx.Module("logger",
	fx.Provide(
		NewLogger,
	),
)

func NewLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log, cfg.App.IsProduction())
}
