package clock

import "time"

// Clock is the time source for room timestamps, heartbeat expiry and uptime.
// Injected so tests can move time without sleeping.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// System reads the wall clock
type System struct{}

// New returns the system clock
func New() System {
	return System{}
}

func (System) Now() time.Time {
	return time.Now()
}

func (System) Since(t time.Time) time.Duration {
	return time.Since(t)
}
