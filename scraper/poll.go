package scraper

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by Poll when the condition never held within
// its timeout.
var ErrPollTimeout = errors.New("scraper: condition not met before timeout")

const defaultPollInterval = 250 * time.Millisecond

// Poll evaluates cond every interval until it reports true, returns an
// error, or timeout elapses. A cancelled parent context returns the
// parent's error rather than ErrPollTimeout.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	pollCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(pollCtx)
		if ok {
			return nil
		}
		if err != nil {
			if pollCtx.Err() != nil && ctx.Err() == nil {
				return ErrPollTimeout
			}
			return err
		}

		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrPollTimeout
		case <-ticker.C:
		}
	}
}

// sleep pauses for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
