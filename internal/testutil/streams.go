package testutil

import (
	"iter"
	"slices"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// Mode selects when a mock sender fires the token passed to SubmitAsync.
type Mode int

const (
	// Immediate completes inside SubmitAsync, before it returns.
	Immediate Mode = iota

	// Deferred parks the token until the test calls Complete, Abort or Cancel.
	Deferred
)

// String returns the mode name, used in subtest names.
func (m Mode) String() string {
	if m == Deferred {
		return "deferred"
	}
	return "immediate"
}

// Modes lists both completion timings so tests can accept either ordering.
var Modes = []Mode{Immediate, Deferred}

// Behavior configures how a mock endpoint's senders complete.
type Behavior struct {
	Mode Mode

	// Failing makes every operation fail with Err.
	Failing bool
	Err     completion.Code
}

// Probe records the outcome delivered to a token.
type Probe struct {
	Dones   int
	Errors  int
	Cancels int
	Code    completion.Code
}

// Token returns a token that records into p.
func (p *Probe) Token() completion.Token {
	return completion.Token{
		OnError:     func(c completion.Code) { p.Errors++; p.Code = c },
		OnCancelled: func() { p.Cancels++ },
		OnDone:      func() { p.Dones++ },
	}
}

// Fired returns the total number of callbacks delivered.
func (p *Probe) Fired() int {
	return p.Dones + p.Errors + p.Cancels
}

// ReadProbe records the outcome delivered to a read token.
type ReadProbe[T any] struct {
	Probe
	Value T
}

// Token returns a read token that records into p.
func (p *ReadProbe[T]) Token() completion.ReadToken[T] {
	return completion.ReadToken[T]{
		OnError:     func(c completion.Code) { p.Errors++; p.Code = c },
		OnCancelled: func() { p.Cancels++ },
		OnDone:      func(v T) { p.Dones++; p.Value = v },
	}
}

// MockSender is a controllable completion.Sender. Perform runs when the
// sender is submitted, on either path, before the outcome is decided.
type MockSender struct {
	Behavior
	Perform func()

	SyncSubmits  int
	AsyncSubmits int
	Cancels      int

	token   completion.Token
	pending bool
}

// Submit implements completion.Sender.
func (s *MockSender) Submit() error {
	s.checkUnused()
	s.SyncSubmits++
	if s.Perform != nil {
		s.Perform()
	}
	if s.Failing {
		return s.Err
	}
	return nil
}

// SubmitAsync implements completion.Sender.
func (s *MockSender) SubmitAsync(t completion.Token) {
	s.checkUnused()
	s.AsyncSubmits++
	if s.Perform != nil {
		s.Perform()
	}
	t = completion.Guard(t)
	if s.Mode == Immediate {
		if s.Failing {
			t.Error(s.Err)
			return
		}
		t.Done()
		return
	}
	s.token = t
	s.pending = true
}

// Cancel implements completion.Sender. A pending submission is cancelled
// immediately.
func (s *MockSender) Cancel() {
	s.Cancels++
	if s.pending {
		s.pending = false
		s.token.Cancelled()
	}
}

// Complete fires done on a pending deferred submission.
func (s *MockSender) Complete() {
	s.mustBePending()
	s.pending = false
	s.token.Done()
}

// Abort fires error(c) on a pending deferred submission.
func (s *MockSender) Abort(c completion.Code) {
	s.mustBePending()
	s.pending = false
	s.token.Error(c)
}

// Pending reports whether a deferred submission is waiting for completion.
func (s *MockSender) Pending() bool {
	return s.pending
}

// Submitted reports whether either submit path was used.
func (s *MockSender) Submitted() bool {
	return s.SyncSubmits+s.AsyncSubmits > 0
}

func (s *MockSender) checkUnused() {
	if s.Submitted() {
		panic("testutil: sender submitted twice")
	}
}

func (s *MockSender) mustBePending() {
	if !s.pending {
		panic("testutil: no pending submission")
	}
}

// MockReadSender is a controllable completion.ReadSender. Produce runs when
// the sender is submitted and supplies the value delivered on success.
type MockReadSender[T any] struct {
	Behavior
	Produce func() T

	SyncSubmits  int
	AsyncSubmits int
	Cancels      int

	token   completion.ReadToken[T]
	value   T
	pending bool
}

// Submit implements completion.ReadSender.
func (s *MockReadSender[T]) Submit() (T, error) {
	s.checkUnused()
	s.SyncSubmits++
	v := s.Produce()
	if s.Failing {
		var zero T
		return zero, s.Err
	}
	return v, nil
}

// SubmitAsync implements completion.ReadSender.
func (s *MockReadSender[T]) SubmitAsync(t completion.ReadToken[T]) {
	s.checkUnused()
	s.AsyncSubmits++
	v := s.Produce()
	t = completion.GuardRead(t)
	if s.Mode == Immediate {
		if s.Failing {
			t.Error(s.Err)
			return
		}
		t.Done(v)
		return
	}
	s.token = t
	s.value = v
	s.pending = true
}

// Cancel implements completion.ReadSender.
func (s *MockReadSender[T]) Cancel() {
	s.Cancels++
	if s.pending {
		s.pending = false
		s.token.Cancelled()
	}
}

// Complete fires done with the produced value on a pending submission.
func (s *MockReadSender[T]) Complete() {
	if !s.pending {
		panic("testutil: no pending submission")
	}
	s.pending = false
	s.token.Done(s.value)
}

// Abort fires error(c) on a pending submission.
func (s *MockReadSender[T]) Abort(c completion.Code) {
	if !s.pending {
		panic("testutil: no pending submission")
	}
	s.pending = false
	s.token.Error(c)
}

// Pending reports whether a deferred submission is waiting for completion.
func (s *MockReadSender[T]) Pending() bool {
	return s.pending
}

// Submitted reports whether either submit path was used.
func (s *MockReadSender[T]) Submitted() bool {
	return s.SyncSubmits+s.AsyncSubmits > 0
}

func (s *MockReadSender[T]) checkUnused() {
	if s.Submitted() {
		panic("testutil: sender submitted twice")
	}
}

// WriteMock is a write-capable leaf endpoint that records what submitted
// operations deliver.
type WriteMock[T any] struct {
	Behavior

	// OnWrite, when set, observes every value as a submitted operation
	// delivers it.
	OnWrite func(v T)

	Calls   int
	Written []T
	Senders []*MockSender
}

// NewWriteMock creates a WriteMock completing in the given mode.
func NewWriteMock[T any](mode Mode) *WriteMock[T] {
	return &WriteMock[T]{Behavior: Behavior{Mode: mode}}
}

// Write implements stream.ValueWriter.
func (m *WriteMock[T]) Write(v T) completion.Sender {
	m.Calls++
	return m.sender(func() { m.deliver(v) })
}

// WriteRange implements stream.RangeWriter. The range is consumed when the
// returned sender is submitted.
func (m *WriteMock[T]) WriteRange(r iter.Seq[T]) completion.Sender {
	m.Calls++
	return m.sender(func() {
		for v := range r {
			m.deliver(v)
		}
	})
}

// Last returns the most recently created sender.
func (m *WriteMock[T]) Last() *MockSender {
	if len(m.Senders) == 0 {
		return nil
	}
	return m.Senders[len(m.Senders)-1]
}

func (m *WriteMock[T]) deliver(v T) {
	m.Written = append(m.Written, v)
	if m.OnWrite != nil {
		m.OnWrite(v)
	}
}

func (m *WriteMock[T]) sender(perform func()) *MockSender {
	s := &MockSender{Behavior: m.Behavior, Perform: perform}
	m.Senders = append(m.Senders, s)
	return s
}

// ReadMock is a read-capable leaf endpoint that hands out Feed in order.
type ReadMock[T any] struct {
	Behavior

	Feed        []T
	Calls       int
	Senders     []*MockSender
	ReadSenders []*MockReadSender[T]
}

// NewReadMock creates a ReadMock that will produce feed.
func NewReadMock[T any](mode Mode, feed ...T) *ReadMock[T] {
	return &ReadMock[T]{Behavior: Behavior{Mode: mode}, Feed: feed}
}

// Read implements stream.ValueReader.
func (m *ReadMock[T]) Read() completion.ReadSender[T] {
	m.Calls++
	s := &MockReadSender[T]{Behavior: m.Behavior, Produce: m.pop}
	m.ReadSenders = append(m.ReadSenders, s)
	return s
}

// ReadRange implements stream.RangeReader. Elements are copied into dst
// when the returned sender is submitted.
func (m *ReadMock[T]) ReadRange(dst outview.Cursor[T]) completion.Sender {
	m.Calls++
	s := &MockSender{Behavior: m.Behavior, Perform: func() {
		n := outview.Copy(slices.Values(m.Feed), dst)
		m.Feed = m.Feed[n:]
	}}
	m.Senders = append(m.Senders, s)
	return s
}

// LastRead returns the most recently created single-value read sender.
func (m *ReadMock[T]) LastRead() *MockReadSender[T] {
	if len(m.ReadSenders) == 0 {
		return nil
	}
	return m.ReadSenders[len(m.ReadSenders)-1]
}

// Last returns the most recently created range sender.
func (m *ReadMock[T]) Last() *MockSender {
	if len(m.Senders) == 0 {
		return nil
	}
	return m.Senders[len(m.Senders)-1]
}

func (m *ReadMock[T]) pop() T {
	if len(m.Feed) == 0 {
		panic("testutil: read mock feed exhausted")
	}
	v := m.Feed[0]
	m.Feed = m.Feed[1:]
	return v
}

// ReadWriteMock is a read-write-capable leaf endpoint. Single-value
// transfers answer with Reply; range transfers clock out Feed.
type ReadWriteMock[W, R any] struct {
	Behavior

	Reply func(W) R
	Feed  []R

	Calls       int
	Written     []W
	Senders     []*MockSender
	ReadSenders []*MockReadSender[R]
}

// NewReadWriteMock creates a ReadWriteMock answering single transfers with reply.
func NewReadWriteMock[W, R any](mode Mode, reply func(W) R, feed ...R) *ReadWriteMock[W, R] {
	return &ReadWriteMock[W, R]{Behavior: Behavior{Mode: mode}, Reply: reply, Feed: feed}
}

// ReadWrite implements stream.ValueReadWriter.
func (m *ReadWriteMock[W, R]) ReadWrite(v W) completion.ReadSender[R] {
	m.Calls++
	s := &MockReadSender[R]{Behavior: m.Behavior, Produce: func() R {
		m.Written = append(m.Written, v)
		return m.Reply(v)
	}}
	m.ReadSenders = append(m.ReadSenders, s)
	return s
}

// ReadWriteRange implements stream.RangeReadWriter.
func (m *ReadWriteMock[W, R]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender {
	m.Calls++
	s := &MockSender{Behavior: m.Behavior, Perform: func() {
		for v := range in {
			m.Written = append(m.Written, v)
		}
		n := outview.Copy(slices.Values(m.Feed), out)
		m.Feed = m.Feed[n:]
	}}
	m.Senders = append(m.Senders, s)
	return s
}

// LastRead returns the most recently created single-value sender.
func (m *ReadWriteMock[W, R]) LastRead() *MockReadSender[R] {
	if len(m.ReadSenders) == 0 {
		return nil
	}
	return m.ReadSenders[len(m.ReadSenders)-1]
}

// Last returns the most recently created range sender.
func (m *ReadWriteMock[W, R]) Last() *MockSender {
	if len(m.Senders) == 0 {
		return nil
	}
	return m.Senders[len(m.Senders)-1]
}

// ActionMock is a pre-action whose senders count how often they ran.
type ActionMock struct {
	Behavior

	Calls   int
	Runs    int
	Senders []*MockSender
}

// NewActionMock creates an ActionMock completing in the given mode.
func NewActionMock(mode Mode) *ActionMock {
	return &ActionMock{Behavior: Behavior{Mode: mode}}
}

// Action returns the nullary function to hand to a pre-action combinator.
func (a *ActionMock) Action() func() completion.Sender {
	return func() completion.Sender {
		a.Calls++
		s := &MockSender{Behavior: a.Behavior, Perform: func() { a.Runs++ }}
		a.Senders = append(a.Senders, s)
		return s
	}
}

// Last returns the most recently created sender.
func (a *ActionMock) Last() *MockSender {
	if len(a.Senders) == 0 {
		return nil
	}
	return a.Senders[len(a.Senders)-1]
}

// Completer is implemented by mocks that can complete one pending
// deferred submission.
type Completer interface {
	CompleteNext() bool
}

// Settle completes pending deferred submissions across ms, in the order
// they become pending, until none remain. It returns the number completed.
func Settle(ms ...Completer) int {
	n := 0
	for progress := true; progress; {
		progress = false
		for _, m := range ms {
			if m.CompleteNext() {
				n++
				progress = true
			}
		}
	}
	return n
}

func completeFirst(ss []*MockSender) bool {
	for _, s := range ss {
		if s.Pending() {
			s.Complete()
			return true
		}
	}
	return false
}

func completeFirstRead[T any](ss []*MockReadSender[T]) bool {
	for _, s := range ss {
		if s.Pending() {
			s.Complete()
			return true
		}
	}
	return false
}

// CompleteNext implements Completer.
func (m *WriteMock[T]) CompleteNext() bool { return completeFirst(m.Senders) }

// CompleteNext implements Completer.
func (m *ReadMock[T]) CompleteNext() bool {
	return completeFirst(m.Senders) || completeFirstRead(m.ReadSenders)
}

// CompleteNext implements Completer.
func (m *ReadWriteMock[W, R]) CompleteNext() bool {
	return completeFirst(m.Senders) || completeFirstRead(m.ReadSenders)
}

// CompleteNext implements Completer.
func (a *ActionMock) CompleteNext() bool { return completeFirst(a.Senders) }
