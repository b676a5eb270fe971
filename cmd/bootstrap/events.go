package bootstrap

import (
	"bloodbank-ops/internal/infra/stream"
	"bloodbank-ops/internal/usecase"

	"go.uber.org/fx"
)

var EventsModule = fx.Module("events",
	fx.Provide(
		stream.New,
		func(s *stream.Stream) usecase.EventSink { return s },
	),
)
