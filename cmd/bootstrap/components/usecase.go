package components

import (
	"log/slog"
	"time"

	"bloodbank-ops/internal/domain/forecast"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseInventoryModule,
	usecaseAnalyticsModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	usecase.NewLocks,
	NewDeps,
	func() forecast.Source {
		return usecase.NewRandSource(uint64(time.Now().UnixNano()))
	},
)

var usecaseInventoryModule = fx.Module("usecase/inventory",
	fx.Provide(
		usecase.NewRegistry,
		usecase.NewLedger,
		usecase.NewRequests,
		NewInventory,
	),
)

var usecaseAnalyticsModule = fx.Module("usecase/analytics",
	fx.Provide(
		usecase.NewForecaster,
		usecase.NewStatistics,
	),
)

func NewDeps(
	store usecase.Store,
	guard usecase.Guard,
	cache usecase.Cache,
	sink usecase.EventSink,
	clk clock.Clock,
	logger *slog.Logger,
	locks *usecase.Locks,
	cfg config.Config,
) *usecase.Deps {
	return &usecase.Deps{
		Store:     store,
		Guard:     guard,
		Cache:     cache,
		Sink:      sink,
		Clock:     clk,
		Logger:    logger,
		Locks:     locks,
		Inventory: cfg.Inventory,
	}
}

func NewInventory(deps *usecase.Deps, forecaster *usecase.Forecaster, cfg config.Config) *usecase.Inventory {
	return usecase.NewInventory(deps, forecaster, cfg.Monitor.RotationThresholdDays)
}
