// Package ratelimit provides the token bucket that paces calls to the LINE
// reply API.
package ratelimit

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket over rate.Limiter. It is safe for concurrent use.
//
// Tokens are added at refillRate per second up to maxTokens, and each call
// consumes one.
type Limiter struct {
	lim *rate.Limiter
	now func() time.Time
}

// New creates a limiter that starts full. maxTokens is rounded up to a
// whole burst of at least one.
func New(maxTokens, refillRate float64) *Limiter {
	return newWithClock(maxTokens, refillRate, time.Now)
}

func newWithClock(maxTokens, refillRate float64, now func() time.Time) *Limiter {
	burst := max(int(math.Ceil(maxTokens)), 1)
	return &Limiter{
		lim: rate.NewLimiter(rate.Limit(refillRate), burst),
		now: now,
	}
}

// Allow consumes a token if one is available. It never blocks.
func (l *Limiter) Allow() bool {
	return l.lim.AllowN(l.now(), 1)
}

// Wait blocks until a token is consumed. It fails early when ctx is done or
// its deadline is closer than the next token.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Available returns the current number of tokens.
func (l *Limiter) Available() float64 {
	return l.lim.TokensAt(l.now())
}
