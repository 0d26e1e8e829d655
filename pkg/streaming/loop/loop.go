package loop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	ctxutil "github.com/vnykmshr/gostream/pkg/common/context"
	"github.com/vnykmshr/gostream/pkg/metrics"
)

// Config configures a Loop.
type Config struct {
	// Name labels the loop in logs and metrics.
	Name string

	// Logger receives task panics and lifecycle events. Nil means no logging.
	Logger *zap.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config

	// IdleBackoff is the first wait between ticks while only pollers are
	// active. It doubles up to MaxBackoff and resets when work is done.
	IdleBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig returns a default loop configuration.
func DefaultConfig() Config {
	return Config{
		Name:        "loop",
		IdleBackoff: 10 * time.Microsecond,
		MaxBackoff:  time.Millisecond,
	}
}

// Loop is a cooperative single-goroutine scheduler for deferred
// completions. Tasks and pollers all run on the goroutine calling RunOnce,
// Drain or Run; Post is the only method safe to call from other goroutines
// while the loop is running.
type Loop struct {
	name    string
	log     *zap.Logger
	reg     *metrics.Registry
	backoff time.Duration
	maxWait time.Duration

	mu      sync.Mutex
	ready   *queue.Queue
	pollers []*Handle

	wake    chan struct{}
	batch   []func()
	running atomic.Bool
}

// Handle controls a poller registered with Poll.
type Handle struct {
	fn      func() bool
	stopped atomic.Bool
}

// Stop removes the poller. It is not run again after Stop returns.
func (h *Handle) Stop() {
	h.stopped.Store(true)
}

// Stopped reports whether the poller finished or was stopped.
func (h *Handle) Stopped() bool {
	return h.stopped.Load()
}

// New creates a Loop. Zero fields of cfg take their DefaultConfig values.
func New(cfg Config) *Loop {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = def.IdleBackoff
	}
	if cfg.MaxBackoff < cfg.IdleBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.IdleBackoff)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Loop{
		name:    cfg.Name,
		log:     cfg.Logger.With(zap.String("loop", cfg.Name)),
		reg:     cfg.Metrics.Collectors(),
		backoff: cfg.IdleBackoff,
		maxWait: cfg.MaxBackoff,
		ready:   queue.New(),
		wake:    make(chan struct{}, 1),
	}
}

// Name returns the configured loop name.
func (l *Loop) Name() string {
	return l.name
}

// Post queues task to run on the loop goroutine. It is safe for
// concurrent use.
func (l *Loop) Post(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	l.ready.Add(task)
	n := l.ready.Length()
	l.mu.Unlock()

	if l.reg != nil {
		l.reg.LoopPending.WithLabelValues(l.name).Set(float64(n))
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Poll registers fn to run on every tick until it returns true or the
// returned handle is stopped.
func (l *Loop) Poll(fn func() bool) *Handle {
	h := &Handle{fn: fn}
	l.mu.Lock()
	l.pollers = append(l.pollers, h)
	n := len(l.pollers)
	l.mu.Unlock()

	if l.reg != nil {
		l.reg.LoopPollers.WithLabelValues(l.name).Set(float64(n))
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return h
}

// Pending returns the number of queued tasks plus active pollers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready.Length() + l.activePollers()
}

func (l *Loop) activePollers() int {
	n := 0
	for _, h := range l.pollers {
		if !h.Stopped() {
			n++
		}
	}
	return n
}

// RunOnce runs the tasks queued before the call, then every active poller
// once. Tasks posted while it runs wait for the next tick. It returns the
// number of tasks run plus the number of pollers that finished.
func (l *Loop) RunOnce() int {
	l.mu.Lock()
	for n := l.ready.Length(); n > 0; n-- {
		l.batch = append(l.batch, l.ready.Remove().(func()))
	}
	pollers := l.pollers
	l.mu.Unlock()

	work := 0
	for i, task := range l.batch {
		l.batch[i] = nil
		l.run(task)
		work++
	}
	l.batch = l.batch[:0]

	for _, h := range pollers {
		if h.Stopped() {
			continue
		}
		if l.poll(h) {
			h.Stop()
			work++
		}
	}

	l.mu.Lock()
	active := l.pollers[:0]
	for _, h := range l.pollers {
		if !h.Stopped() {
			active = append(active, h)
		}
	}
	for i := len(active); i < len(l.pollers); i++ {
		l.pollers[i] = nil
	}
	l.pollers = active
	queued, polling := l.ready.Length(), len(active)
	l.mu.Unlock()

	if l.reg != nil {
		l.reg.LoopTasks.WithLabelValues(l.name).Add(float64(work))
		l.reg.LoopPending.WithLabelValues(l.name).Set(float64(queued))
		l.reg.LoopPollers.WithLabelValues(l.name).Set(float64(polling))
	}
	return work
}

// Drain runs ticks until one does no work or maxTicks ticks have run, and
// returns the total work done. maxTicks <= 0 means no limit.
func (l *Loop) Drain(maxTicks int) int {
	total := 0
	for tick := 0; maxTicks <= 0 || tick < maxTicks; tick++ {
		n := l.RunOnce()
		if n == 0 {
			break
		}
		total += n
	}
	return total
}

// Run drives the loop until ctx is done. While only pollers are active it
// backs off exponentially between ticks; with nothing at all to do it
// blocks until Post or Poll is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("loop %q is already running", l.name)
	}
	defer l.running.Store(false)

	l.log.Debug("loop started")
	defer l.log.Debug("loop stopped")

	// Reset and Stop discard stale ticks on timers created by NewTimer.
	timer := time.NewTimer(l.maxWait)
	timer.Stop()
	defer timer.Stop()

	wait := l.backoff
	for {
		if ctxutil.IsCanceled(ctx) {
			return ctx.Err()
		}
		if l.RunOnce() > 0 {
			wait = l.backoff
			continue
		}

		l.mu.Lock()
		queued, polling := l.ready.Length(), l.activePollers()
		l.mu.Unlock()
		if queued > 0 {
			continue
		}

		if polling == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			timer.Stop()
			wait = l.backoff
		case <-timer.C:
			wait = min(wait*2, l.maxWait)
		}
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop task panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	task()
}

func (l *Loop) poll(h *Handle) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop poller panicked, removing it",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			done = true
		}
	}()
	return h.fn()
}
