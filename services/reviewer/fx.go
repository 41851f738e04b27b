package reviewer

import (
	"go.uber.org/fx"
)

var Module = fx.Module("reviewer.service",
	fx.Provide(NewService),
)
