package stream

import (
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/gostream/pkg/metrics"
	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// Operation labels used by the observe wrappers.
const (
	OpWrite          = "write"
	OpWriteRange     = "write_range"
	OpRead           = "read"
	OpReadRange      = "read_range"
	OpReadWrite      = "readwrite"
	OpReadWriteRange = "readwrite_range"
)

// ObserveWriter wraps s so every operation is counted and timed under name.
// When cfg is disabled, s is returned unchanged.
func ObserveWriter[T any](s Writer[T], name string, cfg metrics.Config) Writer[T] {
	o := newObserver(name, cfg, Classify[T, T](s))
	if o == nil {
		return s
	}
	return &observedWriter[T]{inner: s, o: o}
}

// ObserveReader is ObserveWriter for read-capable streams.
func ObserveReader[T any](s Reader[T], name string, cfg metrics.Config) Reader[T] {
	o := newObserver(name, cfg, Classify[T, T](s))
	if o == nil {
		return s
	}
	return &observedReader[T]{inner: s, o: o}
}

// ObserveReadWriter is ObserveWriter for read-write-capable streams.
func ObserveReadWriter[W, R any](s ReadWriter[W, R], name string, cfg metrics.Config) ReadWriter[W, R] {
	o := newObserver(name, cfg, Classify[W, R](s))
	if o == nil {
		return s
	}
	return &observedReadWriter[W, R]{inner: s, o: o}
}

type observedWriter[T any] struct {
	inner Writer[T]
	o     *opObserver
}

func (w *observedWriter[T]) Write(v T) completion.Sender {
	return w.o.sender(OpWrite, w.inner.Write(v), nil)
}

func (w *observedWriter[T]) WriteRange(r iter.Seq[T]) completion.Sender {
	n := new(int)
	return w.o.sender(OpWriteRange, w.inner.WriteRange(countSeq(r, n)), n)
}

type observedReader[T any] struct {
	inner Reader[T]
	o     *opObserver
}

func (r *observedReader[T]) Read() completion.ReadSender[T] {
	return observeRead(r.o, OpRead, r.inner.Read())
}

func (r *observedReader[T]) ReadRange(dst outview.Cursor[T]) completion.Sender {
	c := &countCursor[T]{Cursor: dst}
	return r.o.sender(OpReadRange, r.inner.ReadRange(c), &c.n)
}

type observedReadWriter[W, R any] struct {
	inner ReadWriter[W, R]
	o     *opObserver
}

func (rw *observedReadWriter[W, R]) ReadWrite(v W) completion.ReadSender[R] {
	return observeRead(rw.o, OpReadWrite, rw.inner.ReadWrite(v))
}

func (rw *observedReadWriter[W, R]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender {
	c := &countCursor[R]{Cursor: out}
	return rw.o.sender(OpReadWriteRange, rw.inner.ReadWriteRange(in, c), &c.n)
}

type opObserver struct {
	name string
	reg  *metrics.Registry
	log  *zap.Logger
}

func newObserver(name string, cfg metrics.Config, c Capability) *opObserver {
	reg := cfg.Collectors()
	if reg == nil {
		return nil
	}
	log := Logger().With(zap.String("stream", name))
	log.Debug("observing stream", zap.Stringer("capability", c))
	return &opObserver{name: name, reg: reg, log: log}
}

func (o *opObserver) begin(op string) time.Time {
	o.reg.StreamOperations.WithLabelValues(op, o.name).Inc()
	return time.Now()
}

func (o *opObserver) done(op string, start time.Time, items *int) {
	o.reg.StreamLatency.WithLabelValues(op, o.name).Observe(time.Since(start).Seconds())
	if items != nil {
		o.reg.StreamItems.WithLabelValues(op, o.name).Add(float64(*items))
	}
}

func (o *opObserver) failed(op string, start time.Time, c completion.Code) {
	o.reg.StreamLatency.WithLabelValues(op, o.name).Observe(time.Since(start).Seconds())
	o.reg.StreamErrors.WithLabelValues(op, o.name).Inc()
	o.log.Debug("stream operation failed", zap.String("operation", op), zap.Int("code", int(c)))
}

func (o *opObserver) cancelled(op string) {
	o.reg.StreamCancellations.WithLabelValues(op, o.name).Inc()
	o.log.Debug("stream operation cancelled", zap.String("operation", op))
}

func (o *opObserver) finish(op string, start time.Time, items *int, err error) {
	if err != nil {
		c, _ := completion.CodeOf(err)
		o.failed(op, start, c)
		return
	}
	o.done(op, start, items)
}

func (o *opObserver) sender(op string, inner completion.Sender, items *int) completion.Sender {
	return &observedSender{o: o, op: op, inner: inner, items: items}
}

type observedSender struct {
	o     *opObserver
	op    string
	inner completion.Sender
	items *int
}

func (s *observedSender) Submit() error {
	start := s.o.begin(s.op)
	err := s.inner.Submit()
	s.o.finish(s.op, start, s.items, err)
	return err
}

func (s *observedSender) SubmitAsync(t completion.Token) {
	start := s.o.begin(s.op)
	s.inner.SubmitAsync(completion.Token{
		OnError: func(c completion.Code) {
			s.o.failed(s.op, start, c)
			t.Error(c)
		},
		OnCancelled: func() {
			s.o.cancelled(s.op)
			t.Cancelled()
		},
		OnDone: func() {
			s.o.done(s.op, start, s.items)
			t.Done()
		},
	})
}

func (s *observedSender) Cancel() {
	s.inner.Cancel()
}

func observeRead[T any](o *opObserver, op string, inner completion.ReadSender[T]) completion.ReadSender[T] {
	return &observedReadSender[T]{o: o, op: op, inner: inner}
}

type observedReadSender[T any] struct {
	o     *opObserver
	op    string
	inner completion.ReadSender[T]
}

func (s *observedReadSender[T]) Submit() (T, error) {
	start := s.o.begin(s.op)
	v, err := s.inner.Submit()
	s.o.finish(s.op, start, nil, err)
	return v, err
}

func (s *observedReadSender[T]) SubmitAsync(t completion.ReadToken[T]) {
	start := s.o.begin(s.op)
	s.inner.SubmitAsync(completion.ReadToken[T]{
		OnError: func(c completion.Code) {
			s.o.failed(s.op, start, c)
			t.Error(c)
		},
		OnCancelled: func() {
			s.o.cancelled(s.op)
			t.Cancelled()
		},
		OnDone: func(v T) {
			s.o.done(s.op, start, nil)
			t.Done(v)
		},
	})
}

func (s *observedReadSender[T]) Cancel() {
	s.inner.Cancel()
}

// countSeq counts the elements the consumer pulls from r into n.
func countSeq[T any](r iter.Seq[T], n *int) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range r {
			*n++
			if !yield(v) {
				return
			}
		}
	}
}

// countCursor counts the slots its destination advances past.
type countCursor[T any] struct {
	outview.Cursor[T]
	n int
}

func (c *countCursor[T]) Next() {
	c.n++
	c.Cursor.Next()
}
