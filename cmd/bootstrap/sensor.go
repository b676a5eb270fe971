package bootstrap

import (
	"context"
	"time"

	"bloodbank-ops/internal/infra/sensor"
	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

var SensorModule = fx.Module("sensor",
	fx.Provide(
		NewSensor,
	),
)

func NewSensor(cfg config.Config, registry *usecase.Registry) (usecase.Sensor, error) {
	switch cfg.App.SensorDriver {
	case "simulated":
		lookup := func(ctx context.Context, locationID string) (float64, error) {
			loc, err := registry.Location(ctx, locationID)
			if err != nil {
				return 0, err
			}
			return loc.TargetTemperature(), nil
		}
		return sensor.NewSimulated(lookup, uint64(time.Now().UnixNano())), nil
	default:
		return nil, errs.Markf(errs.ErrValidation, "unknown SENSOR_DRIVER %q", cfg.App.SensorDriver)
	}
}
