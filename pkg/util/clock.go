package util

import "time"

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// FakeClock is a manually advanced clock for tests that exercise order expiry.
type FakeClock struct {
	T time.Time
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.T.Add(d)
	return ch
}

func (c *FakeClock) Now() time.Time { return c.T }

// Advance moves the fake clock forward.
func (c *FakeClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
