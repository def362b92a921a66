package timing

import (
	"log/slog"
	"time"
)

// AdaptiveLimiter sleeps until shortly before the slice deadline and then
// busy-waits the rest, correcting accumulated drift every 100 slices.
type AdaptiveLimiter struct {
	target       time.Duration
	next         time.Time
	sliceCounter int64
	logger       *slog.Logger
}

func NewAdaptiveLimiter(logger *slog.Logger) *AdaptiveLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdaptiveLimiter{
		target: SliceDuration,
		next:   time.Now(),
		logger: logger,
	}
}

func (a *AdaptiveLimiter) WaitForNextSlice() {
	now := time.Now()
	sleepTime := a.next.Sub(now)

	if sleepTime > 0 {
		if sleepTime >= 2*time.Millisecond {
			time.Sleep(sleepTime - time.Millisecond)
		}
		for time.Now().Before(a.next) {
			// busy-wait the last stretch, higher accuracy
		}
	} else if sleepTime < -5*a.target {
		// too far behind (paused in a debugger, slow host): don't try to
		// catch up
		a.next = now
	}

	a.next = a.next.Add(a.target)
	a.sliceCounter++

	if a.sliceCounter%100 == 0 {
		drift := time.Since(a.next)
		if drift.Abs() > a.target {
			a.next = a.next.Add(drift / 10)
			a.logger.Debug("slice timing drift correction", "drift_ms", drift.Milliseconds())
		}
	}
}

func (a *AdaptiveLimiter) Reset() {
	a.next = time.Now()
	a.sliceCounter = 0
}
