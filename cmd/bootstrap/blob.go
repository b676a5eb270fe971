package bootstrap

import (
	"context"

	"bloodbank-ops/internal/infra/blob"
	"bloodbank-ops/internal/infra/blob/fs"
	"bloodbank-ops/internal/infra/blob/memory"
	"bloodbank-ops/internal/infra/blob/s3"
	"bloodbank-ops/internal/infra/export"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

var BlobModule = fx.Module("blob",
	fx.Provide(
		NewBlobStore,
		fx.Annotate(
			export.NewPublisher,
			fx.As(new(usecase.ReportExporter)),
		),
	),
)

func NewBlobStore(cfg config.Config) (blob.Store, error) {
	switch blob.Driver(cfg.Blob.Driver) {
	case blob.DriverFilesystem:
		return fs.New(cfg.Blob.Root)
	case blob.DriverMemory:
		return memory.New(), nil
	case blob.DriverS3:
		return s3.New(context.Background(), s3.Config{
			Region:          cfg.Blob.S3Region,
			Bucket:          cfg.Blob.S3Bucket,
			Endpoint:        cfg.Blob.S3Endpoint,
			AccessKeyID:     cfg.Blob.S3AccessKey,
			SecretAccessKey: cfg.Blob.S3SecretKey,
			PathStyle:       cfg.Blob.S3PathStyle,
		})
	default:
		return nil, errs.Markf(errs.ErrValidation, "unknown BLOB_DRIVER %q", cfg.Blob.Driver)
	}
}
