package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/vnykmshr/gostream/pkg/common/validation"
	"github.com/vnykmshr/gostream/pkg/metrics"
)

// Limit is a refill rate in tokens per second. Zero never refills; Inf
// never runs out.
type Limit float64

// Inf is the infinite rate limit; it allows all events.
var Inf = Limit(math.Inf(1))

// Every converts a minimum interval between events to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// Limiter is a token bucket. It is safe for concurrent use.
type Limiter interface {
	// Allow reports whether one token can be taken now. It does not block.
	Allow() bool

	// AllowN reports whether n tokens can be taken now. It does not block.
	AllowN(n int) bool

	// Wait blocks until a token is available or ctx is done.
	Wait(ctx context.Context) error

	// WaitN blocks until n tokens are available or ctx is done. When n
	// tokens can never be granted it fails at once with an error wrapping
	// errors.ErrRateLimited.
	WaitN(ctx context.Context, n int) error

	// Reserve takes a token now, possibly going into debt, and reports when
	// the caller may act.
	Reserve() *Reservation

	// ReserveN is Reserve for n tokens.
	ReserveN(n int) *Reservation

	// SetLimit changes the refill rate, keeping the burst.
	SetLimit(limit Limit)

	// SetBurst changes the bucket capacity, keeping the rate.
	SetBurst(burst int)

	Limit() Limit
	Burst() int

	// Tokens returns the number of tokens currently available. It is
	// negative while reservations are outstanding.
	Tokens() float64
}

// Reservation records tokens taken ahead of time.
type Reservation struct {
	ok        bool
	timeToAct time.Time
	tokens    int
	lim       *tokenBucket
}

// OK reports whether the tokens could be reserved at all.
func (r *Reservation) OK() bool {
	return r.ok
}

// Delay returns how long the caller must wait before acting, according to
// the limiter's clock.
func (r *Reservation) Delay() time.Duration {
	if r.lim == nil {
		return 0
	}
	return r.DelayFrom(r.lim.clock.Now())
}

// DelayFrom is Delay measured from now.
func (r *Reservation) DelayFrom(now time.Time) time.Duration {
	if !r.ok {
		return 0
	}
	if delay := r.timeToAct.Sub(now); delay > 0 {
		return delay
	}
	return 0
}

// Cancel returns the reserved tokens to the bucket.
func (r *Reservation) Cancel() {
	if !r.ok || r.lim == nil {
		return
	}
	r.lim.restore(r.tokens)
	r.ok = false
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a Limiter.
type Config struct {
	// Rate is the number of tokens added per second.
	Rate Limit

	// Burst is the maximum number of tokens that can be stored.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// InitialTokens is the number of tokens to start with.
	// If negative, the bucket starts full.
	InitialTokens int

	// Name labels the limiter in metrics.
	// Default: "bucket"
	Name string

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

type tokenBucket struct {
	mu         sync.Mutex
	limit      Limit
	burst      int
	tokens     float64
	lastUpdate time.Time
	clock      Clock

	name string
	reg  *metrics.Registry
}

// New creates a full token bucket refilled at rate up to burst tokens.
func New(rate Limit, burst int) (Limiter, error) {
	return NewWithConfig(Config{
		Rate:          rate,
		Burst:         burst,
		InitialTokens: -1,
	})
}

// NewWithConfig creates a token bucket with the specified configuration.
func NewWithConfig(config Config) (Limiter, error) {
	if err := validation.First(
		validation.NonNegative("bucket", "rate", config.Rate),
		validation.Positive("bucket", "burst", config.Burst),
	); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	if config.Name == "" {
		config.Name = "bucket"
	}

	tokens := float64(config.InitialTokens)
	if config.InitialTokens < 0 || config.InitialTokens > config.Burst {
		tokens = float64(config.Burst)
	}

	return &tokenBucket{
		limit:      config.Rate,
		burst:      config.Burst,
		tokens:     tokens,
		lastUpdate: config.Clock.Now(),
		clock:      config.Clock,
		name:       config.Name,
		reg:        config.Metrics.Collectors(),
	}, nil
}
