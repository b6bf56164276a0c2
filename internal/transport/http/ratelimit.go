package http

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter allows limit frames per minute with a burst of limit.
// It is owned by a single read loop.
type rateLimiter struct {
	lim *rate.Limiter
	now func() time.Time
}

// newRateLimiter returns nil when limit <= 0, which disables limiting.
func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{
		lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit),
		now: time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	return r.lim.AllowN(r.now(), 1)
}
