package timing

import "time"

// TickerLimiter paces slices with a time.Ticker. Late slices are not made
// up for: the ticker drops ticks the caller was too slow to receive.
type TickerLimiter struct {
	period time.Duration
	ticker *time.Ticker
}

// NewTickerLimiter creates a limiter releasing one slice per period, or
// per SliceDuration when period is not positive.
func NewTickerLimiter(period time.Duration) *TickerLimiter {
	if period <= 0 {
		period = SliceDuration
	}
	return &TickerLimiter{period: period, ticker: time.NewTicker(period)}
}

func (t *TickerLimiter) WaitForNextSlice() { <-t.ticker.C }
func (t *TickerLimiter) Reset()            { t.ticker.Reset(t.period) }

// Stop releases the ticker. The limiter must not be used afterwards.
func (t *TickerLimiter) Stop() { t.ticker.Stop() }
