package streambuf

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
)

// PrepareContext lends a write lease over n contiguous unused slots, waiting
// until the request can be satisfied, or until ctx is done, in which case the
// context's error is returned, with no effect on the buffer's state. It never
// fails with ErrOutOfRange. A nil ctx or negative n will cause a panic.
//
// Note that n greater than Cap can never be satisfied, and will wait until
// cancellation.
//
// Waiters are woken by the release of read leases (which reclaims capacity),
// with a poll-timer fallback, see WithPollInterval. There is no fairness
// guarantee between concurrent waiters.
func (x *Buffer[T]) PrepareContext(ctx context.Context, n int) (*WriteLease[T], error) {
	if ctx == nil {
		panic(`streambuf: nil context`)
	}
	if n < 0 {
		panic(`streambuf: negative count`)
	}
	return lendWait(ctx, x, x.writable, `write`, func() (*WriteLease[T], error) { return x.Prepare(n) })
}

// ReadContext lends a read lease over the n oldest published elements,
// waiting until the request can be satisfied, or until ctx is done, in which
// case the context's error is returned, with no effect on the buffer's
// state. It never fails with ErrOutOfRange. A nil ctx or negative n will
// cause a panic.
//
// Note that n greater than Cap can never be satisfied, and will wait until
// cancellation.
//
// Waiters are woken by the release of write leases (which publishes data),
// with a poll-timer fallback, see WithPollInterval. There is no fairness
// guarantee between concurrent waiters.
func (x *Buffer[T]) ReadContext(ctx context.Context, n int) (*ReadLease[T], error) {
	if ctx == nil {
		panic(`streambuf: nil context`)
	}
	if n < 0 {
		panic(`streambuf: negative count`)
	}
	return lendWait(ctx, x, x.readable, `read`, func() (*ReadLease[T], error) { return x.Read(n) })
}

// lendWait retries lend until it succeeds, converting ErrOutOfRange into a
// wait on the notify channel (signalled by the peer manager at release), with
// the poll interval as a fallback against coalesced or raced wakeups.
func lendWait[T, L any](ctx context.Context, x *Buffer[T], notify <-chan struct{}, side string, lend func() (L, error)) (L, error) {
	var zero L
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var timer clockwork.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		l, err := lend()
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrOutOfRange) {
			return zero, err
		}

		if timer == nil {
			timer = x.clock.NewTimer(x.pollInterval)
			if b := x.logger.Debug(); b.Enabled() {
				b.Str(`side`, side).Log(`lease wait started`)
			}
		} else {
			timer.Reset(x.pollInterval)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-notify:
		case <-timer.Chan():
		}
	}
}
