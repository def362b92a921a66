package timing

import "time"

// Limiter paces emulation to wall clock time in fixed slices.
type Limiter interface {
	// WaitForNextSlice blocks until it's time to run the next slice.
	// Returns immediately if timing is behind schedule.
	WaitForNextSlice()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// SliceDuration is the wall clock length of one slice.
const SliceDuration = 10 * time.Millisecond

// DefaultClockRate is the clock of a stock Z80 board.
const DefaultClockRate = 4_000_000

// SliceCycles returns how many T-states fit in one slice at hz. It is never
// less than 1.
func SliceCycles(hz uint64) uint64 {
	n := hz * uint64(SliceDuration/time.Microsecond) / 1_000_000
	return max(n, 1)
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless mode).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextSlice() {}
func (n *noOpLimiter) Reset()            {}
