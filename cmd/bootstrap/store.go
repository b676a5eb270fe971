package bootstrap

import (
	"log/slog"

	"bloodbank-ops/internal/infra/health"
	"bloodbank-ops/internal/infra/store/memory"
	"bloodbank-ops/internal/infra/store/postgres"
	"bloodbank-ops/internal/infra/store/sqlite"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

// StoreDriver is a store that the health manager can dial.
type StoreDriver interface {
	usecase.Store
	health.Dialer
}

var StoreModule = fx.Module("store",
	fx.Provide(
		NewStoreDriver,
		func(d StoreDriver) usecase.Store { return d },
		func(d StoreDriver) usecase.JobRepository { return d },
	),
)

func NewStoreDriver(cfg config.Config, logger *slog.Logger) (StoreDriver, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.New(logger), nil
	case "sqlite":
		return sqlite.New(logger), nil
	case "postgres":
		return postgres.New(logger), nil
	default:
		return nil, errs.Markf(errs.ErrValidation, "unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
}
