package testutil

import (
	"time"

	"fwatch-go/internal/fwatch"
)

// fixedTime is the instant every FixedClock reports.
var fixedTime = time.Date(2026, 3, 12, 9, 15, 30, 0, time.UTC)

// FixedClock returns a clock pinned to 2026-03-12 09:15:30 UTC, so stored
// timestamps in service tests are predictable.
func FixedClock() fwatch.Clock {
	return fixedClock{}
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedTime }
