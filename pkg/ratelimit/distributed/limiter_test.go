package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/gostream/internal/testutil"
	"github.com/vnykmshr/gostream/pkg/common/errors"
	"github.com/vnykmshr/gostream/pkg/metrics"
	"github.com/vnykmshr/gostream/pkg/ratelimit/bucket"
)

type fixture struct {
	mr     *miniredis.Miniredis
	client redis.UniversalClient
	clock  *testutil.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	// Whole seconds keep the float arithmetic in the script exact.
	return &fixture{
		mr:     mr,
		client: client,
		clock:  testutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func (f *fixture) limiter(t *testing.T, rate float64, burst int, mutate ...func(*Config)) *Limiter {
	t.Helper()
	cfg := Config{
		Redis: f.client,
		Key:   "test_limiter",
		Rate:  rate,
		Burst: burst,
		Clock: f.clock,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	l, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return l
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing redis", Config{Key: "k", Rate: 1, Burst: 1}},
		{"missing key", Config{Redis: f.client, Rate: 1, Burst: 1}},
		{"zero rate", Config{Redis: f.client, Key: "k", Burst: 1}},
		{"zero burst", Config{Redis: f.client, Key: "k", Rate: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(context.Background(), tt.cfg)
			assert.Nil(t, l)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestDefaultInstanceID(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 1, 1)
	_, err := uuid.Parse(l.InstanceID())
	assert.NoError(t, err)

	named := f.limiter(t, 1, 1, func(c *Config) { c.InstanceID = "server-1" })
	assert.Equal(t, "server-1", named.InstanceID())
}

func TestAllow(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx), "request %d", i+1)
	}
	assert.False(t, l.Allow(ctx))

	f.clock.Advance(time.Second)
	assert.True(t, l.Allow(ctx))
	assert.False(t, l.Allow(ctx))

	f.clock.Advance(time.Hour)
	assert.True(t, l.AllowN(ctx, 3), "refill is capped at burst")
	assert.False(t, l.Allow(ctx))
	assert.True(t, l.AllowN(ctx, 0))
}

func TestSharedAcrossInstances(t *testing.T) {
	f := newFixture(t)
	a := f.limiter(t, 1, 2, func(c *Config) { c.InstanceID = "a" })
	b := f.limiter(t, 1, 2, func(c *Config) { c.InstanceID = "b" })
	ctx := context.Background()

	assert.True(t, a.Allow(ctx))
	assert.True(t, b.Allow(ctx))
	assert.False(t, a.Allow(ctx))
	assert.False(t, b.Allow(ctx))

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, stats.ActiveInstances)
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.AllowedRequests)
	assert.Equal(t, int64(2), stats.DeniedRequests)
	assert.Equal(t, 1.0, stats.Rate)
	assert.Equal(t, 2, stats.Burst)
	assert.Equal(t, 0.0, stats.Tokens)
	assert.True(t, stats.LastRefill.Equal(f.clock.Now()))
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 2, 1)
	ctx := context.Background()

	r, err := l.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Equal(t, time.Duration(0), r.Delay)
	assert.Equal(t, l.InstanceID(), r.InstanceID)

	r, err = l.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Equal(t, 500*time.Millisecond, r.Delay)
	assert.True(t, r.AllowedAt.Equal(f.clock.Now().Add(500*time.Millisecond)))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.Tokens, "a denied reservation takes nothing")
}

func TestSetRateAndBurstApplyToAllInstances(t *testing.T) {
	f := newFixture(t)
	a := f.limiter(t, 1, 2, func(c *Config) { c.InstanceID = "a" })
	b := f.limiter(t, 1, 2, func(c *Config) { c.InstanceID = "b" })
	ctx := context.Background()

	require.True(t, a.AllowN(ctx, 2))
	require.NoError(t, a.SetBurst(ctx, 4))
	require.NoError(t, a.SetRate(ctx, 4))

	f.clock.Advance(time.Second)
	assert.True(t, b.AllowN(ctx, 4))
	assert.False(t, b.Allow(ctx))

	assert.True(t, errors.IsValidationError(a.SetRate(ctx, 0)))
	assert.True(t, errors.IsValidationError(a.SetBurst(ctx, -1)))
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 1, 2)
	ctx := context.Background()

	require.True(t, l.AllowN(ctx, 2))
	require.False(t, l.Allow(ctx))

	require.NoError(t, l.Reset(ctx))
	assert.True(t, l.AllowN(ctx, 2))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRequests)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	a := f.limiter(t, 1, 1, func(c *Config) { c.InstanceID = "a" })
	b := f.limiter(t, 1, 1, func(c *Config) { c.InstanceID = "b" })

	require.NoError(t, a.Close())
	stats, err := b.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stats.ActiveInstances)
}

func TestWaitN(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 20, 1, func(c *Config) { c.Clock = nil })
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	assert.True(t, errors.IsValidationError(l.WaitN(ctx, 2)))
	assert.NoError(t, l.WaitN(ctx, 0))
}

func TestWaitContextTimeout(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 0.1, 1, func(c *Config) { c.Clock = nil })
	require.True(t, l.Allow(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestReserveTimeout(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 1, 1)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := l.Reserve(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errors.IsRetryable(err))
}

func TestRedisUnavailable(t *testing.T) {
	t.Run("denies without fallback", func(t *testing.T) {
		f := newFixture(t)
		core, logs := observer.New(zap.WarnLevel)
		l := f.limiter(t, 1, 5, func(c *Config) { c.Logger = zap.New(core) })
		f.mr.Close()

		assert.False(t, l.Allow(context.Background()))
		_, err := l.Reserve(context.Background(), 1)
		assert.Error(t, err)
		assert.Equal(t, 2, logs.FilterMessage("redis reserve failed").Len())
		assert.Error(t, l.Wait(context.Background()))
	})

	t.Run("uses fallback", func(t *testing.T) {
		f := newFixture(t)
		local, err := bucket.NewWithConfig(bucket.Config{Rate: 0, Burst: 1, InitialTokens: -1})
		require.NoError(t, err)
		l := f.limiter(t, 1, 5, func(c *Config) { c.Fallback = local })
		f.mr.Close()

		assert.True(t, l.Allow(context.Background()))
		assert.False(t, l.Allow(context.Background()))
	})
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	cfg := metrics.Config{Enabled: true, Registry: prometheus.NewRegistry(), Namespace: "distributed_test"}
	reg := cfg.Collectors()
	l := f.limiter(t, 1, 1, func(c *Config) { c.Metrics = cfg })

	l.Allow(context.Background())
	l.Allow(context.Background())

	assert.Equal(t, 2.0, promtest.ToFloat64(reg.RateLimitRequests.WithLabelValues(limiterType, "test_limiter")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.RateLimitAllowed.WithLabelValues(limiterType, "test_limiter")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.RateLimitDenied.WithLabelValues(limiterType, "test_limiter")))
}
