package webhook

import "time"

// Scheduler runs a task after a delay without blocking the caller. The
// dispatcher's retry timers go through this so tests can substitute a
// deterministic implementation.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
}

type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
