package writer

import (
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/gostream/pkg/metrics"
	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
)

// Codes reported by writer operations.
const (
	CodeIO         completion.Code = 200 + iota // underlying Write returned an error
	CodeShortWrite                              // underlying Write accepted fewer bytes
	CodeClosed                                  // stream closed
)

// ErrWriterClosed is returned when attempting to write to a closed stream.
var ErrWriterClosed error = CodeClosed

// Stats holds statistics about the writes issued to the underlying writer.
type Stats struct {
	// BytesWritten is the total number of bytes accepted by the underlying writer.
	BytesWritten int64

	// WriteCount is the total number of underlying Write calls.
	WriteCount int64

	// ErrorCount is the total number of failed or short writes.
	ErrorCount int64

	// ShortWrites is the number of writes that accepted fewer bytes than given.
	ShortWrites int64

	// CancelledCount is the number of asynchronous writes cancelled before
	// they ran.
	CancelledCount int64

	// AverageWriteTime is the average time per underlying Write.
	AverageWriteTime time.Duration

	// TotalWriteTime is the total time spent in underlying Write calls.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last underlying Write.
	LastWriteTime time.Time
}

// Config holds configuration options for a Stream.
type Config struct {
	// Loop runs asynchronous writes. Without a loop, SubmitAsync writes
	// in-line and completes before returning.
	Loop *loop.Loop

	// Name labels the stream in logs and metrics.
	// Default: "writer"
	Name string

	// Logger receives write failures. Nil means no logging.
	Logger *zap.Logger

	// OnError is called with the Go error behind every CodeIO or
	// CodeShortWrite outcome.
	OnError func(error)

	// OnFlush is called after each underlying Write.
	OnFlush func(bytesWritten int, duration time.Duration)

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Name: "writer",
	}
}

// Stream is a byte write endpoint over an io.Writer. Each value or range
// submitted results in exactly one underlying Write call. Blocking submits
// may come from several goroutines; their underlying Writes are not
// interleaved within a range.
type Stream struct {
	underlying io.Writer
	config     Config
	log        *zap.Logger
	reg        *metrics.Registry

	// scratch collects ranges on the blocking path; scratchMu serializes
	// its users.
	scratch   []byte
	scratchMu sync.Mutex

	closed int32 // atomic

	stats   Stats
	statsMu sync.RWMutex
}

// New creates a Stream with default configuration.
func New(w io.Writer, l *loop.Loop) *Stream {
	config := DefaultConfig()
	config.Loop = l
	return NewWithConfig(w, config)
}

// NewWithConfig creates a Stream with the specified configuration.
func NewWithConfig(w io.Writer, config Config) *Stream {
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Stream{
		underlying: w,
		config:     config,
		log:        config.Logger.With(zap.String("writer", config.Name)),
		reg:        config.Metrics.Collectors(),
	}
}

// Write implements stream.ValueWriter.
func (s *Stream) Write(b byte) completion.Sender {
	return &writeOp{s: s, data: []byte{b}}
}

// WriteRange implements stream.RangeWriter. The range is not consumed until
// the returned sender is submitted.
func (s *Stream) WriteRange(r iter.Seq[byte]) completion.Sender {
	return &writeOp{s: s, r: r}
}

// WriteBytes writes p with a single underlying Write. p is copied.
func (s *Stream) WriteBytes(p []byte) completion.Sender {
	return &writeOp{s: s, data: append([]byte(nil), p...)}
}

// WriteString writes str with a single underlying Write.
func (s *Stream) WriteString(str string) completion.Sender {
	return &writeOp{s: s, data: []byte(str)}
}

// Close marks the stream closed. Writes submitted afterwards, and
// asynchronous writes that have not run yet, fail with CodeClosed. The
// underlying writer is not closed.
func (s *Stream) Close() error {
	if atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		s.log.Debug("writer closed")
	}
	return nil
}

// IsClosed returns true if the stream is closed.
func (s *Stream) IsClosed() bool {
	return atomic.LoadInt32(&s.closed) != 0
}

// Stats returns write statistics.
func (s *Stream) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	stats := s.stats
	if stats.WriteCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.WriteCount)
	}
	return stats
}

// write issues one underlying Write for p and maps the outcome to a code.
// An empty p succeeds without touching the underlying writer.
func (s *Stream) write(p []byte) error {
	if s.IsClosed() {
		return CodeClosed
	}
	if len(p) == 0 {
		return nil
	}

	startTime := time.Now()
	n, err := s.underlying.Write(p)
	duration := time.Since(startTime)

	short := err == nil && n < len(p)
	s.updateStats(func(st *Stats) {
		st.WriteCount++
		st.BytesWritten += int64(n)
		st.TotalWriteTime += duration
		st.LastWriteTime = time.Now()
		if err != nil || short {
			st.ErrorCount++
		}
		if short {
			st.ShortWrites++
		}
	})
	if s.reg != nil {
		s.reg.WriterWrites.WithLabelValues(s.config.Name).Inc()
		s.reg.WriterBytesWritten.WithLabelValues(s.config.Name).Add(float64(n))
	}
	if s.config.OnFlush != nil {
		s.config.OnFlush(n, duration)
	}

	switch {
	case err != nil:
		s.failed(err, len(p), n)
		return CodeIO
	case short:
		s.failed(io.ErrShortWrite, len(p), n)
		return CodeShortWrite
	}
	return nil
}

func (s *Stream) failed(err error, want, got int) {
	s.log.Warn("write failed",
		zap.Error(err),
		zap.Int("bytes", want),
		zap.Int("written", got))
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}

// updateStats safely updates statistics.
func (s *Stream) updateStats(updater func(*Stats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	updater(&s.stats)
}

type writeOp struct {
	s    *Stream
	data []byte
	r    iter.Seq[byte]

	pending bool
	token   completion.Token
}

func (op *writeOp) Submit() error {
	if op.r == nil {
		return op.s.write(op.data)
	}
	op.s.scratchMu.Lock()
	defer op.s.scratchMu.Unlock()

	p := op.s.scratch[:0]
	for b := range op.r {
		p = append(p, b)
	}
	op.s.scratch = p
	return op.s.write(p)
}

func (op *writeOp) SubmitAsync(t completion.Token) {
	t = completion.Guard(t)
	p := op.data
	if op.r != nil {
		for b := range op.r {
			p = append(p, b)
		}
	}

	lp := op.s.config.Loop
	if lp == nil {
		complete(t, op.s.write(p))
		return
	}

	op.pending = true
	op.token = t
	lp.Post(func() {
		if !op.pending {
			return
		}
		op.pending = false
		complete(t, op.s.write(p))
	})
}

// Cancel withdraws an asynchronous write that has not run yet.
func (op *writeOp) Cancel() {
	if !op.pending {
		return
	}
	op.pending = false
	op.s.updateStats(func(st *Stats) {
		st.CancelledCount++
	})
	op.token.Cancelled()
}

func complete(t completion.Token, err error) {
	if err != nil {
		t.Error(err.(completion.Code))
		return
	}
	t.Done()
}
