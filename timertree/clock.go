package timertree

import "time"

// Clock is the time source of a [Tree]. Readings must carry Go's monotonic
// clock so that differences are immune to wall clock steps.
type Clock interface {
	Now() time.Time
}

// WallClock reads [time.Now].
type WallClock struct{}

// Now implements [Clock].
func (WallClock) Now() time.Time { return time.Now() }
