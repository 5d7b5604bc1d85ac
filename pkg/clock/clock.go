// Package clock abstracts the time operations used by the pipeline watchdog
// so that tests can drive deadlines deterministically.
package clock

import "time"

// Clock is the subset of the time package needed by the pipeline.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer cancels the call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFn func() bool
}

// Stop prevents the timer from firing. It reports whether the call stopped
// the timer, false if it already fired or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFn == nil {
		return false
	}

	return t.stopFn()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)

	return &Timer{stopFn: timer.Stop}
}
