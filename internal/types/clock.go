package types

import "time"

// Clock abstracts time for testability. Production code uses RealClock;
// tests substitute a fixed or stepping implementation.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
