package bootstrap

import (
	"bloodbank-ops/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	MetricsModule,
	StoreModule,
	HealthModule,
	CacheModule,
	BlobModule,
	EventsModule,
	components.UseCaseModule,
	SensorModule,
	components.WorkerModule,
)
