package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/gostream/internal/testutil"
	"github.com/vnykmshr/gostream/pkg/ratelimit/bucket"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
	"github.com/vnykmshr/gostream/pkg/streaming/stream"
)

func totalRequests(t *testing.T, l *Limiter) int64 {
	t.Helper()
	stats, err := l.Stats(context.Background())
	require.NoError(t, err)
	return stats.TotalRequests
}

func TestGateSync(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 1, 2)
	sink := testutil.NewWriteMock[string](testutil.Immediate)
	w := stream.ActionWriter[string](sink, Gate(l, nil))

	require.NoError(t, w.Write("a").Submit())
	require.NoError(t, w.Write("b").Submit())
	assert.Equal(t, []string{"a", "b"}, sink.Written)
	assert.Equal(t, CodeDenied, GateN(l, nil, 3)().Submit())
}

func TestGateAsyncRetriesAfterDelay(t *testing.T) {
	for _, mode := range testutil.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t)
			l := f.limiter(t, 1, 1)
			lp := loop.New(loop.Config{Name: "gate"})
			sink := testutil.NewWriteMock[int](mode)
			w := stream.ActionWriter[int](sink, Gate(l, lp))

			var first, second testutil.Probe
			w.Write(1).SubmitAsync(first.Token())
			testutil.Settle(sink)
			assert.Equal(t, 1, first.Dones)

			w.Write(2).SubmitAsync(second.Token())
			assert.Equal(t, int64(2), totalRequests(t, l))

			// Before the reported delay has passed the poller stays off Redis.
			lp.RunOnce()
			lp.RunOnce()
			assert.Equal(t, int64(2), totalRequests(t, l))
			assert.Equal(t, 0, second.Fired())

			f.clock.Advance(time.Second)
			lp.RunOnce()
			testutil.Settle(sink)
			assert.Equal(t, 1, second.Dones)
			assert.Equal(t, []int{1, 2}, sink.Written)
			assert.Equal(t, int64(3), totalRequests(t, l))
		})
	}
}

func TestGateAsyncErrors(t *testing.T) {
	t.Run("more than burst", func(t *testing.T) {
		f := newFixture(t)
		l := f.limiter(t, 1, 1)
		var p testutil.Probe
		GateN(l, loop.New(loop.Config{}), 2)().SubmitAsync(p.Token())
		assert.Equal(t, CodeDenied, p.Code)
	})

	t.Run("no loop", func(t *testing.T) {
		f := newFixture(t)
		l := f.limiter(t, 1, 1)
		require.True(t, l.Allow(context.Background()))
		var p testutil.Probe
		Gate(l, nil)().SubmitAsync(p.Token())
		assert.Equal(t, CodeDenied, p.Code)
	})

	t.Run("redis down", func(t *testing.T) {
		f := newFixture(t)
		l := f.limiter(t, 1, 1)
		f.mr.Close()
		var p testutil.Probe
		Gate(l, loop.New(loop.Config{}))().SubmitAsync(p.Token())
		assert.Equal(t, CodeUnavailable, p.Code)
	})

	t.Run("redis down with fallback", func(t *testing.T) {
		f := newFixture(t)
		local, err := bucket.NewWithConfig(bucket.Config{Rate: 1, Burst: 1, Clock: f.clock, InitialTokens: 0})
		require.NoError(t, err)
		l := f.limiter(t, 1, 1, func(c *Config) { c.Fallback = local })
		lp := loop.New(loop.Config{})
		f.mr.Close()

		var p testutil.Probe
		Gate(l, lp)().SubmitAsync(p.Token())
		lp.RunOnce()
		assert.Equal(t, 0, p.Fired())

		f.clock.Advance(time.Second)
		lp.RunOnce()
		assert.Equal(t, 1, p.Dones)
	})
}

func TestGateCancel(t *testing.T) {
	f := newFixture(t)
	l := f.limiter(t, 1, 1)
	lp := loop.New(loop.Config{})
	require.True(t, l.Allow(context.Background()))

	s := Gate(l, lp)()
	var p testutil.Probe
	s.SubmitAsync(p.Token())
	s.Cancel()
	s.Cancel()
	assert.Equal(t, 1, p.Cancels)
	assert.Equal(t, 0, lp.Pending())
}
