package consent

import "time"

// DefaultBannerDelay holds the banner back so it doesn't interrupt the
// visitor's first interaction with the page.
const DefaultBannerDelay = 2000 * time.Millisecond

// Task is a handle on a deferred callback.
type Task interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// Scheduler defers callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// SystemScheduler runs callbacks on the wall clock.
type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}
