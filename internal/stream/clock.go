package stream

import "time"

// Clock is the monotonic audio-clock timebase, in seconds. Scheduling and
// word-timing comparisons use this domain, never wall-clock message arrival
// time.
type Clock interface {
	Now() float64
}

type monotonicClock struct {
	epoch time.Time
}

// NewClock returns a Clock anchored at the moment of the call.
func NewClock() Clock {
	return monotonicClock{epoch: time.Now()}
}

func (c monotonicClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	T float64
}

func (c *FakeClock) Now() float64 { return c.T }

func (c *FakeClock) Advance(d float64) { c.T += d }
