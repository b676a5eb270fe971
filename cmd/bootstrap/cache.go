package bootstrap

import (
	"bloodbank-ops/internal/infra/cache"
	"bloodbank-ops/internal/infra/metrics"
	"bloodbank-ops/internal/pkg/clock"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

var CacheModule = fx.Module("cache",
	fx.Provide(
		NewCache,
		func(c *cache.Cache) usecase.Cache { return c },
	),
)

func NewCache(cfg config.Config, clk clock.Clock, m *metrics.Metrics) (*cache.Cache, error) {
	return cache.New(cfg.Cache, clk, m)
}
