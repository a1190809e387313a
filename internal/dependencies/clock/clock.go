package clock

import "time"

// Clock is the source of "now" for everything that expires or escalates
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time in UTC
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Elapsed returns how long ago t was according to c
func Elapsed(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
