package clock

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
)

// Clock is the injected time source. Expiry and eligibility decisions go
// through it so tests can drive the assignment window deterministically.
type Clock = clock.Clock

var Module = fx.Module("clock",
	fx.Provide(New),
)

func New() Clock {
	return clock.New()
}

// NewMock returns a controllable clock for tests.
func NewMock() *clock.Mock {
	return clock.NewMock()
}
