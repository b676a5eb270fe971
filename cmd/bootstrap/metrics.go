package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bloodbank-ops/internal/infra/metrics"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"

	"go.uber.org/fx"
)

var MetricsModule = fx.Module("metrics",
	fx.Provide(
		metrics.New,
	),
	fx.Invoke(
		startMetricsServer,
	),
)

func startMetricsServer(lc fx.Lifecycle, m *metrics.Metrics, cfg config.Config, logger *slog.Logger) {
	if cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("📈 メトリクスを公開します", "address", cfg.Metrics.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errs.Is(err, http.ErrServerClosed) {
					logger.Error("メトリクスサーバーの起動に失敗しました", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
