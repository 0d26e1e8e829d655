package stream

import (
	"iter"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// FilterWriter returns a Writer that only forwards values accepted by p.
// A rejected single value completes successfully without inner.Write being
// called. Ranges are filtered lazily.
func FilterWriter[T any](inner Writer[T], p func(T) bool) Writer[T] {
	return &filterWriter[T]{inner: inner, p: p}
}

type filterWriter[T any] struct {
	inner Writer[T]
	p     func(T) bool
}

func (w *filterWriter[T]) Write(v T) completion.Sender {
	if !w.p(v) {
		return completion.Elided()
	}
	return w.inner.Write(v)
}

func (w *filterWriter[T]) WriteRange(r iter.Seq[T]) completion.Sender {
	return w.inner.WriteRange(filterSeq(r, w.p))
}

// FilterReader returns a Reader that only delivers values accepted by p.
//
// A single-value read keeps issuing fresh reads on inner until one yields
// an accepted value. The retry is unbounded; wrap the result in a bounded
// combinator when inner may never produce an accepted value. Range reads
// compact accepted values into the destination.
func FilterReader[T any](inner Reader[T], p func(T) bool) Reader[T] {
	return &filterReader[T]{inner: inner, p: p}
}

type filterReader[T any] struct {
	inner Reader[T]
	p     func(T) bool
}

func (r *filterReader[T]) Read() completion.ReadSender[T] {
	return newRetryRead(r.inner.Read, r.p)
}

func (r *filterReader[T]) ReadRange(dst outview.Cursor[T]) completion.Sender {
	return r.inner.ReadRange(outview.Filter(dst, r.p))
}

// FilterReadWriter filters the read side of inner: a single transfer is
// repeated with the same written value until the value read back is
// accepted by p, and range transfers compact accepted values into the
// destination.
func FilterReadWriter[W, R any](inner ReadWriter[W, R], p func(R) bool) ReadWriter[W, R] {
	return &filterReadWriter[W, R]{inner: inner, p: p}
}

type filterReadWriter[W, R any] struct {
	inner ReadWriter[W, R]
	p     func(R) bool
}

func (rw *filterReadWriter[W, R]) ReadWrite(v W) completion.ReadSender[R] {
	return newRetryRead(func() completion.ReadSender[R] { return rw.inner.ReadWrite(v) }, rw.p)
}

func (rw *filterReadWriter[W, R]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender {
	return rw.inner.ReadWriteRange(in, outview.Filter(out, rw.p))
}

// FilterReadWriteInput filters the input sequence of range transfers on
// inner, leaving the read side untouched.
func FilterReadWriteInput[W, R any](inner RangeReadWriter[W, R], p func(W) bool) RangeReadWriter[W, R] {
	return &filterInput[W, R]{inner: inner, p: p}
}

type filterInput[W, R any] struct {
	inner RangeReadWriter[W, R]
	p     func(W) bool
}

func (rw *filterInput[W, R]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender {
	return rw.inner.ReadWriteRange(filterSeq(in, rw.p), out)
}

// retryRead re-issues reads created by next until one delivers a value
// accepted by p.
type retryRead[T any] struct {
	next func() completion.ReadSender[T]
	p    func(T) bool
	cur  completion.ReadSender[T]

	token completion.ReadToken[T]

	// submitting is set while cur.SubmitAsync is on the stack. A rejection
	// arriving in that window sets again instead of recursing.
	submitting bool
	again      bool
}

func newRetryRead[T any](next func() completion.ReadSender[T], p func(T) bool) *retryRead[T] {
	return &retryRead[T]{next: next, p: p, cur: next()}
}

func (s *retryRead[T]) Submit() (T, error) {
	for {
		v, err := s.cur.Submit()
		if err != nil {
			var zero T
			return zero, err
		}
		if s.p(v) {
			return v, nil
		}
		s.cur = s.next()
	}
}

func (s *retryRead[T]) SubmitAsync(t completion.ReadToken[T]) {
	s.token = t
	s.run()
}

func (s *retryRead[T]) run() {
	for {
		s.again = false
		s.submitting = true
		s.cur.SubmitAsync(s.token.WithDone(s.onValue))
		s.submitting = false
		if !s.again {
			return
		}
	}
}

func (s *retryRead[T]) onValue(v T) {
	if s.p(v) {
		s.token.Done(v)
		return
	}
	s.cur = s.next()
	if s.submitting {
		s.again = true
		return
	}
	s.run()
}

func (s *retryRead[T]) Cancel() {
	s.cur.Cancel()
}
