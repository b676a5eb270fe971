package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"bloodbank-ops/cmd/bootstrap"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// startTimeout covers the store connect with its full retry budget.
const startTimeout = 2 * time.Minute

func main() {
	app := fx.New(
		bootstrap.Module,
		fx.StartTimeout(startTimeout),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		slog.Error("アプリケーションの起動に失敗しました", "error", err)
		os.Exit(1)
	}

	sig := <-app.Wait()

	if err := app.Stop(context.Background()); err != nil {
		slog.Error("アプリケーションの停止に失敗しました", "error", err)
	}

	if sig.ExitCode != 0 {
		slog.Error("アプリケーションが異常終了しました", "exit_code", sig.ExitCode)
		os.Exit(sig.ExitCode)
	}
	slog.Info("アプリケーションが正常に停止しました")
}
