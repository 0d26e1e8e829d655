package bucket

import (
	"context"
	"math"
	"strconv"
	"time"

	ctxutil "github.com/vnykmshr/gostream/pkg/common/context"
	"github.com/vnykmshr/gostream/pkg/common/errors"
)

const limiterType = "token_bucket"

// Allow reports whether an event may happen now.
func (tb *tokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN reports whether n events may happen now.
func (tb *tokenBucket) AllowN(n int) bool {
	ok := tb.take(tb.clock.Now(), n, 0).ok
	tb.record(n, ok)
	return ok
}

// Wait blocks until an event can happen.
func (tb *tokenBucket) Wait(ctx context.Context) error {
	return tb.WaitN(ctx, 1)
}

// WaitN blocks until n events can happen. Time is measured with the
// limiter's clock but the wait itself uses a real timer.
func (tb *tokenBucket) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	now := tb.clock.Now()
	r := tb.take(now, n, math.MaxInt64)
	if !r.ok {
		tb.record(n, false)
		return errors.NewOperationError("bucket", "wait", errors.ErrRateLimited).
			WithContext("n=" + strconv.Itoa(n) + " can never be granted")
	}

	if err := ctxutil.Sleep(ctx, r.DelayFrom(now)); err != nil {
		r.Cancel()
		tb.record(n, false)
		return err
	}

	tb.record(n, true)
	if tb.reg != nil {
		tb.reg.RateLimitWaitTime.WithLabelValues(limiterType, tb.name).Observe(time.Since(start).Seconds())
	}
	return nil
}

// Reserve returns a reservation for one event.
func (tb *tokenBucket) Reserve() *Reservation {
	return tb.ReserveN(1)
}

// ReserveN returns a reservation for n events.
func (tb *tokenBucket) ReserveN(n int) *Reservation {
	r := tb.take(tb.clock.Now(), n, math.MaxInt64)
	tb.record(n, r.ok)
	return r
}

// SetLimit changes the rate limit.
func (tb *tokenBucket) SetLimit(limit Limit) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.clock.Now())
	tb.limit = limit
}

// SetBurst changes the burst size. It panics if burst is not positive.
func (tb *tokenBucket) SetBurst(burst int) {
	if burst <= 0 {
		panic("bucket: burst must be positive")
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.clock.Now())
	tb.burst = burst
	tb.tokens = math.Min(tb.tokens, float64(burst))
}

// Limit returns the current rate limit.
func (tb *tokenBucket) Limit() Limit {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limit
}

// Burst returns the current burst size.
func (tb *tokenBucket) Burst() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.burst
}

// Tokens returns the number of tokens currently available.
func (tb *tokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.clock.Now())
	return tb.tokens
}

// take removes n tokens at now. If fewer are available it goes into debt,
// provided the debt is repaid within maxWait. A zero rate never repays.
func (tb *tokenBucket) take(now time.Time, n int, maxWait time.Duration) *Reservation {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	r := &Reservation{timeToAct: now, tokens: n, lim: tb}
	if n <= 0 || tb.limit == Inf {
		r.ok = true
		r.tokens = 0
		return r
	}

	tb.refill(now)
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		r.ok = true
		return r
	}
	if tb.limit == 0 {
		return r
	}

	missing := float64(n) - tb.tokens
	wait := time.Duration(float64(time.Second) * missing / float64(tb.limit))
	if wait > maxWait {
		return r
	}

	tb.tokens -= float64(n)
	r.ok = true
	r.timeToAct = now.Add(wait)
	return r
}

// refill adds the tokens accrued since the last update, capped at burst.
func (tb *tokenBucket) refill(now time.Time) {
	switch {
	case tb.limit == Inf:
		tb.tokens = float64(tb.burst)
	case tb.limit > 0:
		elapsed := now.Sub(tb.lastUpdate)
		if elapsed <= 0 {
			return
		}
		tb.tokens = math.Min(tb.tokens+elapsed.Seconds()*float64(tb.limit), float64(tb.burst))
	}
	tb.lastUpdate = now
}

func (tb *tokenBucket) restore(n int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.clock.Now())
	tb.tokens = math.Min(tb.tokens+float64(n), float64(tb.burst))
}

func (tb *tokenBucket) record(n int, allowed bool) {
	if tb.reg == nil || n <= 0 {
		return
	}
	tb.reg.RateLimitRequests.WithLabelValues(limiterType, tb.name).Add(float64(n))
	if allowed {
		tb.reg.RateLimitAllowed.WithLabelValues(limiterType, tb.name).Add(float64(n))
	} else {
		tb.reg.RateLimitDenied.WithLabelValues(limiterType, tb.name).Add(float64(n))
	}
}
