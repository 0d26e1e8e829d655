package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/gostream/internal/testutil"
	"github.com/vnykmshr/gostream/pkg/metrics"
)

func TestRunOnceRunsQueuedTasksInOrder(t *testing.T) {
	l := New(Config{})
	var order []int
	for i := 0; i < 3; i++ {
		l.Post(func() { order = append(order, i) })
	}
	assert.Equal(t, 3, l.Pending())

	assert.Equal(t, 3, l.RunOnce())
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestTasksPostedDuringTickWait(t *testing.T) {
	l := New(Config{})
	ran := 0
	l.Post(func() {
		l.Post(func() { ran++ })
	})

	assert.Equal(t, 1, l.RunOnce())
	assert.Equal(t, 0, ran)
	assert.Equal(t, 1, l.RunOnce())
	assert.Equal(t, 1, ran)
}

func TestPollUntilTrue(t *testing.T) {
	l := New(Config{})
	calls := 0
	h := l.Poll(func() bool {
		calls++
		return calls == 3
	})

	assert.Equal(t, 0, l.RunOnce())
	assert.Equal(t, 0, l.RunOnce())
	assert.Equal(t, 1, l.RunOnce())
	assert.True(t, h.Stopped())
	assert.Equal(t, 0, l.Pending())

	l.RunOnce()
	assert.Equal(t, 3, calls)
}

func TestHandleStop(t *testing.T) {
	l := New(Config{})
	calls := 0
	h := l.Poll(func() bool { calls++; return false })

	l.RunOnce()
	h.Stop()
	l.RunOnce()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, l.Pending())
}

func TestDrain(t *testing.T) {
	l := New(Config{})
	depth := 0
	var chain func()
	chain = func() {
		depth++
		if depth < 5 {
			l.Post(chain)
		}
	}
	l.Post(chain)

	assert.Equal(t, 5, l.Drain(0))
	assert.Equal(t, 5, depth)

	l.Poll(func() bool { return false })
	assert.Equal(t, 0, l.Drain(10), "an idle poller is not work")

	depth = 0
	l.Post(chain)
	assert.Equal(t, 2, l.Drain(2))
}

func TestTaskPanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	l := New(Config{Name: "panicky", Logger: zap.New(core)})

	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Poll(func() bool { panic("poll boom") })

	assert.NotPanics(t, func() { l.RunOnce() })
	assert.True(t, ran)
	assert.Equal(t, 0, l.Pending(), "a panicking poller is removed")
	assert.Equal(t, 1, logs.FilterMessage("loop task panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("loop poller panicked, removing it").Len())
}

func TestRunProcessesPostsFromOtherGoroutines(t *testing.T) {
	l := New(Config{Name: "run"})
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				l.Post(func() { count.Add(1) })
			}
		}()
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- l.Run(runCtx) }()

	wg.Wait()
	testutil.Eventually(t, func() bool { return count.Load() == 100 }, time.Second, time.Millisecond)

	stop()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDrivesPollers(t *testing.T) {
	l := New(Config{IdleBackoff: time.Microsecond, MaxBackoff: 100 * time.Microsecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ready atomic.Bool
	var fired atomic.Bool
	l.Poll(func() bool {
		if !ready.Load() {
			return false
		}
		fired.Store(true)
		return true
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	ready.Store(true)
	testutil.Eventually(t, fired.Load, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunTwice(t *testing.T) {
	l := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	testutil.Eventually(t, l.running.Load, time.Second, time.Millisecond)

	assert.Error(t, l.Run(ctx))
	cancel()
	<-done
}

func TestMetrics(t *testing.T) {
	cfg := metrics.Config{Enabled: true, Registry: prometheus.NewRegistry(), Namespace: "loop_test"}
	reg := cfg.Collectors()
	l := New(Config{Name: "m", Metrics: cfg})

	l.Post(func() {})
	l.Post(func() {})
	assert.Equal(t, 2.0, promtest.ToFloat64(reg.LoopPending.WithLabelValues("m")))

	l.Poll(func() bool { return false })
	l.RunOnce()
	assert.Equal(t, 2.0, promtest.ToFloat64(reg.LoopTasks.WithLabelValues("m")))
	assert.Equal(t, 0.0, promtest.ToFloat64(reg.LoopPending.WithLabelValues("m")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.LoopPollers.WithLabelValues("m")))
}
