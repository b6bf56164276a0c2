package roomchat

import (
	"context"
	"time"
)

type result[T any] struct {
	val T
	err error
}

// WithTimeout races op against a timer of duration d.
//
// If op does not return within d, WithTimeout returns ErrTimeout and cancels
// the context passed to op. The timer is stopped as soon as op wins, and op's
// result is dropped into a buffered channel so a late op never blocks.
// A non-positive d runs op without a race.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)
	done := make(chan result[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- result[T]{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		cancel()
		return r.val, r.err
	case <-timer.C:
		cancel()
		var zero T
		return zero, ErrTimeout
	case <-ctx.Done():
		cancel()
		var zero T
		return zero, ctx.Err()
	}
}

// Do is WithTimeout for operations without a result value.
func Do(ctx context.Context, d time.Duration, op func(ctx context.Context) error) error {
	_, err := WithTimeout(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
