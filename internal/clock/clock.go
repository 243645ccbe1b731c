// Package clock abstracts the timers used by the session controller and the
// host adapters so tests can drive USSD timeouts and settle delays
// deterministically.
//
// Production code uses Real(). Tests use Fake() and move time with Advance,
// calling WaitForTimers first when the timer is registered from another
// goroutine.
package clock

import "time"

// Clock is the subset of the time package the engine depends on.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	// d <= 0 fires immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels it.
	AfterFunc(d time.Duration, f func()) *Timer

	Sleep(d time.Duration)
}

// Timer is a cancellable pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. It reports false if the call already ran
// or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
