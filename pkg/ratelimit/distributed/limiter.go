package distributed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	ctxutil "github.com/vnykmshr/gostream/pkg/common/context"
	"github.com/vnykmshr/gostream/pkg/common/errors"
	"github.com/vnykmshr/gostream/pkg/common/validation"
	"github.com/vnykmshr/gostream/pkg/metrics"
	"github.com/vnykmshr/gostream/pkg/ratelimit/bucket"
)

const limiterType = "redis_token_bucket"

// Reservation is the outcome of one attempt to take tokens.
type Reservation struct {
	// OK reports whether the tokens were taken.
	OK bool

	// Delay is how long until enough tokens accrue when OK is false.
	Delay time.Duration

	Tokens     int
	AllowedAt  time.Time
	InstanceID string
}

// Stats holds the shared limiter state as stored in Redis.
type Stats struct {
	Rate            float64
	Burst           int
	Tokens          float64
	LastRefill      time.Time
	TotalRequests   int64
	AllowedRequests int64
	DeniedRequests  int64
	ActiveInstances []string
}

// Config holds configuration for a Limiter.
type Config struct {
	// Redis client for coordination.
	Redis redis.UniversalClient

	// Key is the Redis key prefix shared by every instance of this limiter.
	Key string

	// Rate is the number of tokens added per second.
	Rate float64

	// Burst is the maximum number of tokens that can be stored.
	Burst int

	// InstanceID uniquely identifies this application instance.
	// Default: a random UUID
	InstanceID string

	// Fallback is consulted when Redis is unavailable. Nil means requests
	// are denied while Redis is down.
	Fallback bucket.Limiter

	// Clock provides the time sent to Redis. Every instance must use a
	// comparable clock. If nil, bucket.SystemClock is used.
	Clock bucket.Clock

	// RedisTimeout is the timeout for each Redis round trip.
	// Default: 500ms
	RedisTimeout time.Duration

	// KeyTTL is how long idle keys live.
	// Default: 1 hour
	KeyTTL time.Duration

	// Logger receives Redis failures. Nil means no logging.
	Logger *zap.Logger

	// Metrics controls Prometheus instrumentation. The limiter is labelled
	// with Key.
	Metrics metrics.Config
}

// DefaultConfig returns a default configuration. Redis, Key, Rate and
// Burst must still be set.
func DefaultConfig() Config {
	return Config{
		RedisTimeout: 500 * time.Millisecond,
		KeyTTL:       time.Hour,
	}
}

// Limiter is a token bucket whose state lives in Redis, so every instance
// sharing Key draws from the same tokens. Each attempt is a single atomic
// script run.
type Limiter struct {
	config  Config
	keys    keys
	consume *redis.Script
	log     *zap.Logger
	reg     *metrics.Registry
}

type keys struct {
	tokens, last, config, stats, instances string
}

func newKeys(prefix string) keys {
	return keys{
		tokens:    prefix + ":tokens",
		last:      prefix + ":last_refill",
		config:    prefix + ":config",
		stats:     prefix + ":stats",
		instances: prefix + ":instances",
	}
}

func (k keys) all() []string {
	return []string{k.tokens, k.last, k.config, k.stats, k.instances}
}

// New creates a Limiter and registers this instance in Redis.
func New(ctx context.Context, config Config) (*Limiter, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)

	l := &Limiter{
		config:  config,
		keys:    newKeys(config.Key),
		consume: redis.NewScript(luaTryConsume),
		log:     config.Logger.With(zap.String("limiter", config.Key), zap.String("instance", config.InstanceID)),
		reg:     config.Metrics.Collectors(),
	}
	if err := l.initialize(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func validateConfig(config Config) error {
	return validation.First(
		validation.NotNil("distributed", "redis", config.Redis),
		validation.NotEmpty("distributed", "key", config.Key),
		validation.Positive("distributed", "rate", config.Rate),
		validation.Positive("distributed", "burst", config.Burst),
	)
}

func applyConfigDefaults(config Config) Config {
	defaults := DefaultConfig()
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.RedisTimeout <= 0 {
		config.RedisTimeout = defaults.RedisTimeout
	}
	if config.KeyTTL <= 0 {
		config.KeyTTL = defaults.KeyTTL
	}
	if config.Clock == nil {
		config.Clock = bucket.SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return config
}

// initialize creates the shared state unless another instance already did.
func (l *Limiter) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.config.RedisTimeout)
	defer cancel()

	ttl := l.config.KeyTTL
	pipe := l.config.Redis.Pipeline()
	pipe.SetNX(ctx, l.keys.tokens, l.config.Burst, ttl)
	pipe.SetNX(ctx, l.keys.last, timeToFloat(l.config.Clock.Now()), ttl)
	pipe.HSet(ctx, l.keys.config, "rate", l.config.Rate, "burst", l.config.Burst)
	pipe.Expire(ctx, l.keys.config, ttl)
	pipe.SAdd(ctx, l.keys.instances, l.config.InstanceID)
	pipe.Expire(ctx, l.keys.instances, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewOperationError("distributed", "initialize", err).
			WithContext("key=" + l.config.Key)
	}
	return nil
}

// InstanceID returns the identifier this instance registered with.
func (l *Limiter) InstanceID() string {
	return l.config.InstanceID
}

// Allow reports whether an event may happen now across all instances.
func (l *Limiter) Allow(ctx context.Context) bool {
	return l.AllowN(ctx, 1)
}

// AllowN reports whether n events may happen now across all instances.
// When Redis is unavailable the fallback limiter decides, if configured.
func (l *Limiter) AllowN(ctx context.Context, n int) bool {
	if n <= 0 {
		return true
	}
	r, err := l.Reserve(ctx, n)
	if err != nil {
		if l.config.Fallback != nil {
			return l.config.Fallback.AllowN(n)
		}
		return false
	}
	return r.OK
}

// Wait blocks until an event can happen.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.WaitN(ctx, 1)
}

// WaitN blocks until n tokens were taken or ctx is done. Other instances
// compete for the same tokens, so it retries after each computed delay.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > l.config.Burst {
		return errors.NewValidationError("distributed", "n", n, "exceeds burst")
	}

	for {
		r, err := l.Reserve(ctx, n)
		if err != nil {
			if l.config.Fallback != nil {
				return l.config.Fallback.WaitN(ctx, n)
			}
			return err
		}
		if r.OK {
			return nil
		}

		if err := ctxutil.Sleep(ctx, r.Delay); err != nil {
			return err
		}
	}
}

// Reserve makes one attempt to take n tokens. When they are not available
// nothing is taken and Delay tells how long until they would be.
func (l *Limiter) Reserve(ctx context.Context, n int) (*Reservation, error) {
	now := l.config.Clock.Now()
	if n <= 0 {
		return &Reservation{OK: true, AllowedAt: now, InstanceID: l.config.InstanceID}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.config.RedisTimeout)
	defer cancel()

	result, err := l.consume.Run(ctx, l.config.Redis,
		[]string{l.keys.tokens, l.keys.last, l.keys.config, l.keys.stats},
		n,
		timeToFloat(now),
		l.config.KeyTTL.Milliseconds(),
		l.config.Rate,
		l.config.Burst,
	).Slice()
	if err != nil {
		if ctxutil.IsTimedOut(ctx) {
			err = fmt.Errorf("%w: %w", errors.ErrTimeout, err)
		}
		l.log.Warn("redis reserve failed", zap.Error(err), zap.Bool("fallback", l.config.Fallback != nil))
		return nil, errors.NewOperationError("distributed", "reserve", err).
			WithContext("key=" + l.config.Key)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("distributed: unexpected script result %v", result)
	}

	allowed, _ := result[0].(int64)
	delaySeconds, _ := strconv.ParseFloat(fmt.Sprint(result[2]), 64)
	delay := time.Duration(delaySeconds * float64(time.Second))

	l.record(n, allowed == 1)
	return &Reservation{
		OK:         allowed == 1,
		Delay:      delay,
		Tokens:     n,
		AllowedAt:  now.Add(delay),
		InstanceID: l.config.InstanceID,
	}, nil
}

// SetRate changes the refill rate for every instance.
func (l *Limiter) SetRate(ctx context.Context, rate float64) error {
	if err := validation.Positive("distributed", "rate", rate); err != nil {
		return err
	}
	return l.setConfig(ctx, "set_rate", "rate", rate, func() { l.config.Rate = rate })
}

// SetBurst changes the capacity for every instance.
func (l *Limiter) SetBurst(ctx context.Context, burst int) error {
	if err := validation.Positive("distributed", "burst", burst); err != nil {
		return err
	}
	return l.setConfig(ctx, "set_burst", "burst", burst, func() { l.config.Burst = burst })
}

func (l *Limiter) setConfig(ctx context.Context, op, field string, value interface{}, apply func()) error {
	ctx, cancel := context.WithTimeout(ctx, l.config.RedisTimeout)
	defer cancel()

	if err := l.config.Redis.HSet(ctx, l.keys.config, field, value).Err(); err != nil {
		return errors.NewOperationError("distributed", op, err)
	}
	apply()
	return nil
}

// Stats returns the shared limiter state.
func (l *Limiter) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.RedisTimeout)
	defer cancel()

	pipe := l.config.Redis.Pipeline()
	tokensCmd := pipe.Get(ctx, l.keys.tokens)
	lastCmd := pipe.Get(ctx, l.keys.last)
	configCmd := pipe.HGetAll(ctx, l.keys.config)
	statsCmd := pipe.HGetAll(ctx, l.keys.stats)
	instancesCmd := pipe.SMembers(ctx, l.keys.instances)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.NewOperationError("distributed", "stats", err)
	}

	tokens, _ := strconv.ParseFloat(tokensCmd.Val(), 64)
	last, _ := strconv.ParseFloat(lastCmd.Val(), 64)
	cfg := configCmd.Val()
	rate, _ := strconv.ParseFloat(cfg["rate"], 64)
	burst, _ := strconv.Atoi(cfg["burst"])
	counts := statsCmd.Val()
	total, _ := strconv.ParseInt(counts["total_requests"], 10, 64)
	allowed, _ := strconv.ParseInt(counts["allowed_requests"], 10, 64)
	denied, _ := strconv.ParseInt(counts["denied_requests"], 10, 64)

	return &Stats{
		Rate:            rate,
		Burst:           burst,
		Tokens:          tokens,
		LastRefill:      floatToTime(last),
		TotalRequests:   total,
		AllowedRequests: allowed,
		DeniedRequests:  denied,
		ActiveInstances: instancesCmd.Val(),
	}, nil
}

// Reset clears the shared state and starts over with a full bucket.
func (l *Limiter) Reset(ctx context.Context) error {
	resetCtx, cancel := context.WithTimeout(ctx, l.config.RedisTimeout)
	defer cancel()

	if err := l.config.Redis.Del(resetCtx, l.keys.all()...).Err(); err != nil {
		return errors.NewOperationError("distributed", "reset", err)
	}
	return l.initialize(ctx)
}

// Close deregisters this instance. The shared state is left for the others.
func (l *Limiter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.RedisTimeout)
	defer cancel()
	return l.config.Redis.SRem(ctx, l.keys.instances, l.config.InstanceID).Err()
}

func (l *Limiter) record(n int, allowed bool) {
	if l.reg == nil {
		return
	}
	l.reg.RateLimitRequests.WithLabelValues(limiterType, l.config.Key).Add(float64(n))
	if allowed {
		l.reg.RateLimitAllowed.WithLabelValues(limiterType, l.config.Key).Add(float64(n))
	} else {
		l.reg.RateLimitDenied.WithLabelValues(limiterType, l.config.Key).Add(float64(n))
	}
}

func timeToFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func floatToTime(f float64) time.Time {
	return time.Unix(0, int64(f*1e9))
}

// luaTryConsume refills the bucket up to now and takes the requested tokens
// if they are all available.
//
// KEYS: tokens, last_refill, config, stats
// ARGV: requested, now (seconds), ttl (ms), rate, burst
//
// The rate and burst stored in the config hash win over ARGV so that
// SetRate and SetBurst apply to every instance.
//
// Returns {allowed, tokens_after, delay_seconds}; floats are returned as
// strings since Redis truncates Lua numbers to integers.
const luaTryConsume = `
local requested = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local rate = tonumber(redis.call('HGET', KEYS[3], 'rate') or ARGV[4])
local capacity = tonumber(redis.call('HGET', KEYS[3], 'burst') or ARGV[5])

local tokens = tonumber(redis.call('GET', KEYS[1]) or capacity)
local last = tonumber(redis.call('GET', KEYS[2]) or now)

local elapsed = math.max(0, now - last)
tokens = math.min(capacity, tokens + elapsed * rate)

redis.call('HINCRBY', KEYS[4], 'total_requests', 1)
redis.call('PEXPIRE', KEYS[4], ttl)

local allowed = 0
local delay = 0
if tokens >= requested then
	tokens = tokens - requested
	allowed = 1
	redis.call('HINCRBY', KEYS[4], 'allowed_requests', 1)
else
	delay = (requested - tokens) / rate
	redis.call('HINCRBY', KEYS[4], 'denied_requests', 1)
end

redis.call('SET', KEYS[1], tostring(tokens), 'PX', ttl)
redis.call('SET', KEYS[2], tostring(math.max(now, last)), 'PX', ttl)

return {allowed, tostring(tokens), tostring(delay)}
`
