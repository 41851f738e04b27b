package track

import (
	"go.uber.org/fx"
)

var Module = fx.Module("track.service",
	fx.Provide(NewService),
)
