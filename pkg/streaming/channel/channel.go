package channel

import (
	"iter"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/vnykmshr/gostream/pkg/common/validation"
	"github.com/vnykmshr/gostream/pkg/metrics"
	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// BackpressureStrategy defines how the channel handles writes when full.
type BackpressureStrategy int

const (
	// Block parks asynchronous writes until space is available. A
	// blocking write on a full channel fails with CodeFull.
	Block BackpressureStrategy = iota

	// Drop discards the value being written when the buffer is full.
	Drop

	// DropOldest discards the oldest buffered value to make room.
	DropOldest

	// Error fails the write with CodeFull.
	Error
)

func (s BackpressureStrategy) String() string {
	switch s {
	case Block:
		return "block"
	case Drop:
		return "drop"
	case DropOldest:
		return "drop_oldest"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Codes reported by channel operations.
const (
	CodeFull   completion.Code = 100 + iota // buffer full
	CodeEmpty                               // blocking read on an empty buffer
	CodeClosed                              // channel closed
)

// ErrChannelFull is returned when the channel buffer is full and the
// strategy does not absorb the write.
var ErrChannelFull error = CodeFull

// ErrChannelClosed is returned when operating on a closed channel.
var ErrChannelClosed error = CodeClosed

// Stats holds statistics about channel usage.
type Stats struct {
	// SendCount is the total number of values accepted into the buffer.
	SendCount int64

	// ReceiveCount is the total number of values taken from the buffer.
	ReceiveCount int64

	// DroppedCount is the total number of dropped values.
	DroppedCount int64

	// BlockedSends is the number of writes that had to park.
	BlockedSends int64

	// BufferUtilization is the current buffer utilization (0.0 to 1.0).
	BufferUtilization float64

	// LastSendTime is the timestamp of the last accepted value.
	LastSendTime time.Time

	// LastReceiveTime is the timestamp of the last value taken.
	LastReceiveTime time.Time
}

// Config holds configuration for a Channel.
type Config struct {
	// BufferSize is the capacity of the channel.
	BufferSize int

	// Strategy defines how a write to a full channel is handled.
	Strategy BackpressureStrategy

	// Loop drives parked asynchronous operations. Without a loop,
	// operations that would have to wait fail instead.
	Loop *loop.Loop

	// Name labels the channel in logs and metrics.
	Name string

	// Logger receives drop and close events. Nil means no logging.
	Logger *zap.Logger

	// OnDrop is called with every dropped value.
	OnDrop func(value interface{})

	// OnBlock is called when an asynchronous write parks.
	OnBlock func()

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 100,
		Strategy:   Block,
		Name:       "channel",
	}
}

// Channel is a bounded FIFO leaf endpoint. Values written to it are read
// back in order, which makes it usable as a Writer, a Reader and a
// loopback ReadWriter.
//
// Buffer state is safe for concurrent use, so a producer goroutine may
// submit blocking writes while the loop goroutine reads. Tokens always fire
// on the goroutine that submitted or on the loop goroutine.
type Channel[T any] struct {
	config Config
	log    *zap.Logger
	reg    *metrics.Registry

	mu     sync.Mutex
	buf    *queue.Queue
	closed bool
	stats  Stats
}

// New creates a Channel with default configuration.
func New[T any](bufferSize int, l *loop.Loop) *Channel[T] {
	config := DefaultConfig()
	config.BufferSize = bufferSize
	config.Loop = l
	ch, err := NewWithConfig[T](config)
	if err != nil {
		panic(err)
	}
	return ch
}

// NewWithConfig creates a Channel with the specified configuration.
func NewWithConfig[T any](config Config) (*Channel[T], error) {
	if err := validation.First(
		validation.Positive("channel", "buffer_size", config.BufferSize),
		validation.InRange("channel", "strategy", int(config.Strategy), int(Block), int(Error)),
	); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	ch := &Channel[T]{
		config: config,
		log:    config.Logger.With(zap.String("channel", config.Name)),
		reg:    config.Metrics.Collectors(),
		buf:    queue.New(),
	}
	if ch.reg != nil {
		ch.reg.ChannelBufferSize.WithLabelValues(config.Name).Set(float64(config.BufferSize))
	}
	return ch, nil
}

// Len returns the current number of buffered values.
func (ch *Channel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.buf.Length()
}

// Cap returns the buffer capacity.
func (ch *Channel[T]) Cap() int {
	return ch.config.BufferSize
}

// Close closes the channel. Buffered values can still be read; parked
// operations fail with CodeClosed on the next loop tick.
func (ch *Channel[T]) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.closed {
		ch.closed = true
		ch.log.Debug("channel closed", zap.Int("buffered", ch.buf.Length()))
	}
	return nil
}

// IsClosed reports whether Close was called.
func (ch *Channel[T]) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Stats returns channel statistics.
func (ch *Channel[T]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	stats := ch.stats
	stats.BufferUtilization = float64(ch.buf.Length()) / float64(ch.config.BufferSize)
	return stats
}

// Write implements stream.ValueWriter.
func (ch *Channel[T]) Write(v T) completion.Sender {
	return &writeOp[T]{ch: ch, v: v}
}

// WriteRange implements stream.RangeWriter. A blocking range write stops
// at the first value that cannot be buffered; values before it stay
// written.
func (ch *Channel[T]) WriteRange(r iter.Seq[T]) completion.Sender {
	return &rangeWriteOp[T]{ch: ch, r: r}
}

// Read implements stream.ValueReader. A blocking read never waits: it fails
// with CodeEmpty, or CodeClosed once the channel is closed and drained.
func (ch *Channel[T]) Read() completion.ReadSender[T] {
	return &readOp[T]{ch: ch}
}

// ReadRange implements stream.RangeReader. A blocking range read transfers
// what is buffered and succeeds. An asynchronous range read completes once
// dst is done, or fails with CodeClosed when the channel is closed and
// drained first.
func (ch *Channel[T]) ReadRange(dst outview.Cursor[T]) completion.Sender {
	return &rangeReadOp[T]{ch: ch, dst: dst}
}

// ReadWrite implements stream.ValueReadWriter: it writes v, then reads the
// oldest buffered value.
func (ch *Channel[T]) ReadWrite(v T) completion.ReadSender[T] {
	return completion.ThenRead(ch.Write(v), ch.Read())
}

// ReadWriteRange implements stream.RangeReadWriter: it writes every value
// of in, then reads into out. The input must fit in the free buffer space
// when the strategy is Block.
func (ch *Channel[T]) ReadWriteRange(in iter.Seq[T], out outview.Cursor[T]) completion.Sender {
	return completion.Then(ch.WriteRange(in), ch.ReadRange(out))
}

// push outcomes
type pushResult int

const (
	pushed pushResult = iota
	pushDropped
	pushFull
	pushClosed
)

func (ch *Channel[T]) push(v T) pushResult {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return pushClosed
	}

	var dropped interface{}
	hasDropped := false
	if ch.buf.Length() >= ch.config.BufferSize {
		ch.backpressure()
		switch ch.config.Strategy {
		case Drop:
			ch.stats.DroppedCount++
			ch.mu.Unlock()
			ch.dropped(v)
			return pushDropped
		case DropOldest:
			dropped, hasDropped = ch.buf.Remove(), true
			ch.stats.DroppedCount++
		default:
			ch.mu.Unlock()
			return pushFull
		}
	}

	ch.buf.Add(v)
	ch.stats.SendCount++
	ch.stats.LastSendTime = time.Now()
	n := ch.buf.Length()
	ch.mu.Unlock()

	ch.usage(n)
	if hasDropped {
		ch.dropped(dropped)
	}
	return pushed
}

func (ch *Channel[T]) pop() (T, bool, bool) {
	ch.mu.Lock()
	if ch.buf.Length() == 0 {
		closed := ch.closed
		ch.mu.Unlock()
		var zero T
		return zero, false, closed
	}
	v, _ := ch.buf.Remove().(T)
	ch.stats.ReceiveCount++
	ch.stats.LastReceiveTime = time.Now()
	n := ch.buf.Length()
	ch.mu.Unlock()

	ch.usage(n)
	return v, true, false
}

// transfer moves buffered values into dst until dst is done or the buffer
// is empty. It reports whether dst is done and whether the channel is
// closed and drained.
func (ch *Channel[T]) transfer(dst outview.Cursor[T]) (full, drained bool) {
	for !dst.Done() {
		v, ok, closed := ch.pop()
		if !ok {
			return false, closed
		}
		outview.Put(dst, v)
	}
	return true, false
}

// park registers step with the loop. It reports false when there is no
// loop to wait on.
func (ch *Channel[T]) park(step func() bool) (*loop.Handle, bool) {
	if ch.config.Loop == nil {
		return nil, false
	}
	return ch.config.Loop.Poll(step), true
}

func (ch *Channel[T]) backpressure() {
	if ch.reg != nil {
		ch.reg.BackpressureEvents.WithLabelValues(ch.config.Strategy.String(), ch.config.Name).Inc()
	}
}

func (ch *Channel[T]) usage(n int) {
	if ch.reg != nil {
		ch.reg.ChannelBufferUsage.WithLabelValues(ch.config.Name).Set(float64(n))
	}
}

func (ch *Channel[T]) dropped(v interface{}) {
	ch.log.Debug("channel dropped value", zap.Stringer("strategy", ch.config.Strategy))
	if ch.config.OnDrop != nil {
		ch.config.OnDrop(v)
	}
}

func (ch *Channel[T]) blocked() {
	ch.mu.Lock()
	ch.stats.BlockedSends++
	ch.mu.Unlock()
	if ch.config.OnBlock != nil {
		ch.config.OnBlock()
	}
}

func pushError(r pushResult) error {
	switch r {
	case pushFull:
		return CodeFull
	case pushClosed:
		return CodeClosed
	default:
		return nil
	}
}

// waiter tracks a parked operation so Cancel can withdraw it.
type waiter struct {
	handle    *loop.Handle
	cancelled func()
}

func (w *waiter) cancel() {
	if w.handle == nil || w.handle.Stopped() {
		return
	}
	w.handle.Stop()
	w.cancelled()
}

type writeOp[T any] struct {
	ch *Channel[T]
	v  T
	waiter
}

func (op *writeOp[T]) Submit() error {
	return pushError(op.ch.push(op.v))
}

func (op *writeOp[T]) SubmitAsync(t completion.Token) {
	t = completion.Guard(t)
	step := func() bool {
		switch op.ch.push(op.v) {
		case pushFull:
			return false
		case pushClosed:
			t.Error(CodeClosed)
		default:
			t.Done()
		}
		return true
	}
	if step() {
		return
	}
	h, ok := op.ch.park(step)
	if !ok {
		t.Error(CodeFull)
		return
	}
	op.ch.blocked()
	op.waiter = waiter{handle: h, cancelled: t.Cancelled}
}

func (op *writeOp[T]) Cancel() {
	op.cancel()
}

type rangeWriteOp[T any] struct {
	ch *Channel[T]
	r  iter.Seq[T]
	waiter
}

func (op *rangeWriteOp[T]) Submit() error {
	for v := range op.r {
		if err := pushError(op.ch.push(v)); err != nil {
			return err
		}
	}
	return nil
}

func (op *rangeWriteOp[T]) SubmitAsync(t completion.Token) {
	t = completion.Guard(t)
	next, stop := iter.Pull(op.r)
	var (
		pending T
		has     bool
	)
	step := func() bool {
		for {
			if !has {
				pending, has = next()
				if !has {
					stop()
					t.Done()
					return true
				}
			}
			switch op.ch.push(pending) {
			case pushFull:
				return false
			case pushClosed:
				stop()
				t.Error(CodeClosed)
				return true
			}
			has = false
		}
	}
	if step() {
		return
	}
	h, ok := op.ch.park(step)
	if !ok {
		stop()
		t.Error(CodeFull)
		return
	}
	op.ch.blocked()
	op.waiter = waiter{handle: h, cancelled: func() {
		stop()
		t.Cancelled()
	}}
}

func (op *rangeWriteOp[T]) Cancel() {
	op.cancel()
}

type readOp[T any] struct {
	ch *Channel[T]
	waiter
}

func (op *readOp[T]) Submit() (T, error) {
	v, ok, closed := op.ch.pop()
	switch {
	case ok:
		return v, nil
	case closed:
		return v, CodeClosed
	default:
		return v, CodeEmpty
	}
}

func (op *readOp[T]) SubmitAsync(t completion.ReadToken[T]) {
	t = completion.GuardRead(t)
	step := func() bool {
		v, ok, closed := op.ch.pop()
		switch {
		case ok:
			t.Done(v)
		case closed:
			t.Error(CodeClosed)
		default:
			return false
		}
		return true
	}
	if step() {
		return
	}
	h, ok := op.ch.park(step)
	if !ok {
		t.Error(CodeEmpty)
		return
	}
	op.waiter = waiter{handle: h, cancelled: t.Cancelled}
}

func (op *readOp[T]) Cancel() {
	op.cancel()
}

type rangeReadOp[T any] struct {
	ch  *Channel[T]
	dst outview.Cursor[T]
	waiter
}

func (op *rangeReadOp[T]) Submit() error {
	op.ch.transfer(op.dst)
	return nil
}

func (op *rangeReadOp[T]) SubmitAsync(t completion.Token) {
	t = completion.Guard(t)
	step := func() bool {
		full, drained := op.ch.transfer(op.dst)
		switch {
		case full:
			t.Done()
		case drained:
			t.Error(CodeClosed)
		default:
			return false
		}
		return true
	}
	if step() {
		return
	}
	h, ok := op.ch.park(step)
	if !ok {
		t.Error(CodeEmpty)
		return
	}
	op.waiter = waiter{handle: h, cancelled: t.Cancelled}
}

func (op *rangeReadOp[T]) Cancel() {
	op.cancel()
}
