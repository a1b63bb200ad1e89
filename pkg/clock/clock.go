package clock

import "time"

// Clock is a source of the current time. Production code uses System; tests
// inject a Fake so that delay-sensitive logic (the Batcher's catch-up
// decision) can be driven deterministically instead of sleeping for real.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// System is the production Clock backed by the real wall clock.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
