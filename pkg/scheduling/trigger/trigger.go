package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/gostream/pkg/common/validation"
	"github.com/vnykmshr/gostream/pkg/metrics"
	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
)

// ID identifies a scheduled job.
type ID int

// Options tune a single job.
type Options struct {
	// MaxRuns removes the job after it ran this many times (0 = unlimited).
	MaxRuns int

	// SkipIfPending drops a fire while the previous one is still queued on
	// the loop.
	SkipIfPending bool

	// OnSkip is called on the cron goroutine for every dropped fire.
	OnSkip func(id ID)
}

// Entry describes a scheduled job.
type Entry struct {
	ID   ID
	Spec string
	Next time.Time
	Prev time.Time
	Runs int64
}

// Config holds configuration for a Trigger.
type Config struct {
	// Name labels the trigger in logs and metrics.
	// Default: "trigger"
	Name string

	// Location is the time zone cron specs are evaluated in.
	// Default: time.Local
	Location *time.Location

	// Logger receives schedule and skip events. Nil means no logging.
	Logger *zap.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// Trigger fires jobs on cron schedules. Cron runs on its own goroutine;
// every fire is posted into the loop so the job itself, and any sender it
// submits, runs on the loop goroutine.
type Trigger struct {
	lp     *loop.Loop
	config Config
	cron   *cron.Cron
	parser cron.Parser
	log    *zap.Logger
	reg    *metrics.Registry

	mu   sync.Mutex
	jobs map[ID]*job
}

type job struct {
	t    *Trigger
	id   ID
	spec string
	fn   func()
	opts Options

	runs    atomic.Int64
	pending atomic.Bool
	removed atomic.Bool
}

// New creates a Trigger posting into lp. Specs accept an optional leading
// seconds field and the @every/@daily style descriptors.
func New(lp *loop.Loop, config Config) (*Trigger, error) {
	if err := validation.NotNil("trigger", "loop", lp); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "trigger"
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	log := config.Logger.With(zap.String("trigger", config.Name))
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Trigger{
		lp:     lp,
		config: config,
		parser: parser,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(config.Location),
			cron.WithLogger(cronLogger{log.Sugar()}),
		),
		log:  log,
		reg:  config.Metrics.Collectors(),
		jobs: make(map[ID]*job),
	}, nil
}

// Validate reports whether spec parses.
func (t *Trigger) Validate(spec string) error {
	_, err := t.parser.Parse(spec)
	return err
}

// Add schedules fn on spec.
func (t *Trigger) Add(spec string, fn func()) (ID, error) {
	return t.AddWithOptions(spec, fn, Options{})
}

// AddWithOptions schedules fn on spec with per-job options.
func (t *Trigger) AddWithOptions(spec string, fn func(), opts Options) (ID, error) {
	if err := validation.First(
		validation.NotNil("trigger", "job", fn),
		validation.NonNegative("trigger", "max_runs", opts.MaxRuns),
	); err != nil {
		return 0, err
	}
	schedule, err := t.parser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	j := &job{t: t, spec: spec, fn: fn, opts: opts}

	t.mu.Lock()
	defer t.mu.Unlock()
	j.id = ID(t.cron.Schedule(schedule, j))
	t.jobs[j.id] = j
	t.jobsChanged()

	t.log.Debug("job scheduled", zap.Int("id", int(j.id)), zap.String("spec", spec))
	return j.id, nil
}

// AddSubmit schedules an asynchronous submission: on every fire, op is
// called on the loop goroutine and the sender it returns is submitted with
// tok.
func (t *Trigger) AddSubmit(spec string, op func() completion.Sender, tok completion.Token) (ID, error) {
	if err := validation.NotNil("trigger", "op", op); err != nil {
		return 0, err
	}
	return t.AddWithOptions(spec, func() {
		op().SubmitAsync(tok)
	}, Options{SkipIfPending: true})
}

// Remove unschedules a job. A fire already posted to the loop is dropped.
func (t *Trigger) Remove(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return false
	}
	j.removed.Store(true)
	delete(t.jobs, id)
	t.cron.Remove(cron.EntryID(id))
	t.jobsChanged()
	return true
}

// Entries lists the scheduled jobs ordered by ID.
func (t *Trigger) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.jobs))
	for id, j := range t.jobs {
		e := t.cron.Entry(cron.EntryID(id))
		entries = append(entries, Entry{
			ID:   id,
			Spec: j.spec,
			Next: e.Next,
			Prev: e.Prev,
			Runs: j.runs.Load(),
		})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].ID < entries[b].ID })
	return entries
}

// Start starts the cron goroutine. It is a no-op if already started.
func (t *Trigger) Start() {
	t.cron.Start()
}

// Stop stops scheduling new fires. The returned context is done once the
// cron goroutine has exited. Fires already posted still run on the loop.
func (t *Trigger) Stop() context.Context {
	return t.cron.Stop()
}

// jobsChanged must be called with t.mu held.
func (t *Trigger) jobsChanged() {
	if t.reg != nil {
		t.reg.TriggerJobs.WithLabelValues(t.config.Name).Set(float64(len(t.jobs)))
	}
}

// Run implements cron.Job. It is called on the cron goroutine.
func (j *job) Run() {
	if j.removed.Load() {
		return
	}
	if j.opts.SkipIfPending && !j.pending.CompareAndSwap(false, true) {
		j.t.log.Debug("fire skipped, previous one still pending", zap.Int("id", int(j.id)))
		if j.opts.OnSkip != nil {
			j.opts.OnSkip(j.id)
		}
		return
	}

	if j.t.reg != nil {
		j.t.reg.TriggerFires.WithLabelValues(j.t.config.Name).Inc()
	}
	j.t.lp.Post(j.fire)
}

// fire runs on the loop goroutine.
func (j *job) fire() {
	j.pending.Store(false)
	if j.removed.Load() {
		return
	}

	runs := j.runs.Add(1)
	j.fn()
	if j.opts.MaxRuns > 0 && runs >= int64(j.opts.MaxRuns) {
		j.t.log.Debug("job reached max runs", zap.Int("id", int(j.id)), zap.Int64("runs", runs))
		j.t.Remove(j.id)
	}
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
