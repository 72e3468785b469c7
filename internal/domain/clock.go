package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the wall clock behind Now. Report timestamps and the
// genmock default start date read it; nil restores the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

// Now is the time stamped on a run report.
func Now() time.Time { return clock.Now() }
