package stream

import (
	"iter"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// TransformWriter returns a Writer[T] that writes f(v) to inner. Ranges are
// mapped lazily while inner consumes them.
func TransformWriter[T, U any](inner Writer[U], f func(T) U) Writer[T] {
	return &transformWriter[T, U]{inner: inner, f: f}
}

type transformWriter[T, U any] struct {
	inner Writer[U]
	f     func(T) U
}

func (w *transformWriter[T, U]) Write(v T) completion.Sender {
	return w.inner.Write(w.f(v))
}

func (w *transformWriter[T, U]) WriteRange(r iter.Seq[T]) completion.Sender {
	return w.inner.WriteRange(mapSeq(r, w.f))
}

// TransformReader returns a Reader[U] whose values are f applied to the
// values read from inner. Range reads land in the destination already
// mapped. Errors and cancellation pass through unmodified.
func TransformReader[T, U any](inner Reader[T], f func(T) U) Reader[U] {
	return &transformReader[T, U]{inner: inner, f: f}
}

type transformReader[T, U any] struct {
	inner Reader[T]
	f     func(T) U
}

func (r *transformReader[T, U]) Read() completion.ReadSender[U] {
	return completion.Map(r.inner.Read(), r.f)
}

func (r *transformReader[T, U]) ReadRange(dst outview.Cursor[U]) completion.Sender {
	return r.inner.ReadRange(outview.Transform(dst, r.f))
}

// TransformReadWriter maps the written side of inner with in and the read
// side with out.
func TransformReadWriter[W, V, R, S any](inner ReadWriter[V, R], in func(W) V, out func(R) S) ReadWriter[W, S] {
	return &transformReadWriter[W, V, R, S]{inner: inner, in: in, out: out}
}

type transformReadWriter[W, V, R, S any] struct {
	inner ReadWriter[V, R]
	in    func(W) V
	out   func(R) S
}

func (rw *transformReadWriter[W, V, R, S]) ReadWrite(v W) completion.ReadSender[S] {
	return completion.Map(rw.inner.ReadWrite(rw.in(v)), rw.out)
}

func (rw *transformReadWriter[W, V, R, S]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[S]) completion.Sender {
	return rw.inner.ReadWriteRange(mapSeq(in, rw.in), outview.Transform(out, rw.out))
}
