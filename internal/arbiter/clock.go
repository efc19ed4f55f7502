package arbiter

import "time"

// Clock abstracts time so cooldown and decay logic is deterministic in
// tests. Production uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
