package core

import "time"

// The flight loop measures everything in microseconds on a free-running
// 32-bit counter that wraps every ~71.6 minutes.

var (
	clockSource func() uint32
	delayFunc   = time.Sleep
)

// SetClockSource registers the platform microsecond counter.
// Without one, Micros returns the value last stored with SetTime.
func SetClockSource(fn func() uint32) {
	clockSource = fn
}

// SetDelayFunc replaces the busy-wait used during startup and calibration
func SetDelayFunc(fn func(time.Duration)) {
	if fn == nil {
		fn = time.Sleep
	}
	delayFunc = fn
}

// Micros returns the current microsecond timestamp
func Micros() uint32 {
	if clockSource != nil {
		return clockSource()
	}
	return getSystemTicks()
}

// SetTime sets the manual microsecond counter (for testing/simulation)
func SetTime(us uint32) {
	setSystemTicks(us)
}

// Elapsed returns now-since with modulo-2^32 arithmetic, correct across a single wrap
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Delay waits for d using the registered delay function
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	delayFunc(d)
}
