package replay

import "time"

// TimeProvider is the clock the pacing loop runs against.
// This allows injecting a mock time provider for deterministic testing.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep pauses the calling goroutine for the given duration.
	Sleep(d time.Duration)
}

// DefaultTimeProvider implements TimeProvider using the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// Sleep pauses using the standard library.
func (DefaultTimeProvider) Sleep(d time.Duration) {
	time.Sleep(d)
}
