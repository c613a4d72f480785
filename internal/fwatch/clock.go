package fwatch

import "time"

// Clock abstracts time retrieval so classification timing is deterministic
// in tests. Every timing decision in this package goes through a Clock;
// nothing reads the wall clock directly.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
