// Command migrate applies the Postgres schema declaratively with Atlas.
// The store also creates missing tables on connect; this is for managed
// databases where the service role has no DDL rights.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bloodbank-ops/internal/infra/store/postgres"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/pkg/logger"

	"ariga.io/atlas-go-sdk/atlasexec"
)

func main() {
	var (
		devURL  = flag.String("dev-url", "docker://postgres/16/dev", "Atlas dev database used to compute the diff")
		dryRun  = flag.Bool("dry-run", false, "print the planned statements without applying them")
		atlas   = flag.String("atlas", "atlas", "path to the atlas binary")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("設定の読み込みに失敗しました", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log, cfg.App.IsProduction())

	if cfg.Store.Driver != "postgres" {
		log.Error("migrate は postgres ドライバでのみ使用できます", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	applied, err := apply(ctx, *atlas, cfg.Store.URI, *devURL, *dryRun)
	if err != nil {
		log.Error("スキーマの適用に失敗しました", "error", err)
		os.Exit(1)
	}
	log.Info("スキーマを適用しました", "statements", len(applied), "dry_run", *dryRun)
	for _, stmt := range applied {
		log.Debug("statement", "sql", stmt)
	}
}

func apply(ctx context.Context, atlasPath, url, devURL string, dryRun bool) ([]string, error) {
	dir, err := os.MkdirTemp("", "bloodbank-schema-")
	if err != nil {
		return nil, errs.Wrap(err, "create schema dir")
	}
	defer os.RemoveAll(dir)

	schemaPath := filepath.Join(dir, "schema.sql")
	if err := os.WriteFile(schemaPath, []byte(postgres.Schema), 0o600); err != nil {
		return nil, errs.Wrap(err, "write schema file")
	}

	client, err := atlasexec.NewClient(dir, atlasPath)
	if err != nil {
		return nil, errs.Wrap(err, "init atlas client")
	}
	res, err := client.SchemaApply(ctx, &atlasexec.SchemaApplyParams{
		URL:         url,
		To:          "file://" + schemaPath,
		DevURL:      devURL,
		DryRun:      dryRun,
		AutoApprove: true,
	})
	if err != nil {
		return nil, errs.Wrap(err, "atlas schema apply")
	}
	if dryRun {
		return res.Changes.Pending, nil
	}
	return res.Changes.Applied, nil
}
