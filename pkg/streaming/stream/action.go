package stream

import (
	"iter"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// Action produces the sender of a step that must complete before an
// operation on the wrapped stream starts.
type Action func() completion.Sender

// ActionWriter returns a Writer that runs pre before every operation on
// inner. An error from pre is reported to the caller and inner's operation
// is never submitted.
func ActionWriter[T any](inner Writer[T], pre Action) Writer[T] {
	return &actionWriter[T]{inner: inner, pre: pre}
}

type actionWriter[T any] struct {
	inner Writer[T]
	pre   Action
}

func (w *actionWriter[T]) Write(v T) completion.Sender {
	return completion.Then(w.pre(), w.inner.Write(v))
}

func (w *actionWriter[T]) WriteRange(r iter.Seq[T]) completion.Sender {
	return completion.Then(w.pre(), w.inner.WriteRange(r))
}

// ActionReader is ActionWriter for read-capable streams.
func ActionReader[T any](inner Reader[T], pre Action) Reader[T] {
	return &actionReader[T]{inner: inner, pre: pre}
}

type actionReader[T any] struct {
	inner Reader[T]
	pre   Action
}

func (r *actionReader[T]) Read() completion.ReadSender[T] {
	return completion.ThenRead(r.pre(), r.inner.Read())
}

func (r *actionReader[T]) ReadRange(dst outview.Cursor[T]) completion.Sender {
	return completion.Then(r.pre(), r.inner.ReadRange(dst))
}

// ActionReadWriter is ActionWriter for read-write-capable streams.
func ActionReadWriter[W, R any](inner ReadWriter[W, R], pre Action) ReadWriter[W, R] {
	return &actionReadWriter[W, R]{inner: inner, pre: pre}
}

type actionReadWriter[W, R any] struct {
	inner ReadWriter[W, R]
	pre   Action
}

func (rw *actionReadWriter[W, R]) ReadWrite(v W) completion.ReadSender[R] {
	return completion.ThenRead(rw.pre(), rw.inner.ReadWrite(v))
}

func (rw *actionReadWriter[W, R]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender {
	return completion.Then(rw.pre(), rw.inner.ReadWriteRange(in, out))
}
