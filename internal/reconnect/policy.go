package reconnect

import (
	"context"
	"time"
)

// DefaultDelay is the pause between connection attempts.
const DefaultDelay = 500 * time.Millisecond

// Policy decides how long to wait before the given attempt.
// attempt starts at 1 for the first retry.
type Policy interface {
	Next(attempt int) time.Duration
}

// Fixed waits the same delay before every attempt, with no cap on attempts.
type Fixed struct {
	Delay time.Duration
}

// Next returns the fixed delay, or DefaultDelay when unset.
func (f Fixed) Next(int) time.Duration {
	if f.Delay <= 0 {
		return DefaultDelay
	}
	return f.Delay
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
