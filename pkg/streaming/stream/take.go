package stream

import (
	"iter"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// TakeWhile bounds range reads on inner to the longest prefix accepted by p.
// The first rejected value ends the copy into the caller's destination.
func TakeWhile[T any](inner RangeReader[T], p func(T) bool) RangeReader[T] {
	return &takeReader[T]{inner: inner, wrap: func(dst outview.Cursor[T]) outview.Cursor[T] {
		return outview.TakeWhile(dst, p)
	}}
}

// TakeUntil bounds range reads on inner to the values up to and including
// the first one matching p.
func TakeUntil[T any](inner RangeReader[T], p func(T) bool) RangeReader[T] {
	return &takeReader[T]{inner: inner, wrap: func(dst outview.Cursor[T]) outview.Cursor[T] {
		return outview.TakeUntil(dst, p)
	}}
}

type takeReader[T any] struct {
	inner RangeReader[T]
	wrap  func(outview.Cursor[T]) outview.Cursor[T]
}

func (r *takeReader[T]) ReadRange(dst outview.Cursor[T]) completion.Sender {
	return r.inner.ReadRange(r.wrap(dst))
}

// TakeWhileReadWriter bounds the destination of range transfers on inner
// the way TakeWhile does.
func TakeWhileReadWriter[W, R any](inner RangeReadWriter[W, R], p func(R) bool) RangeReadWriter[W, R] {
	return &takeReadWriter[W, R]{inner: inner, wrap: func(dst outview.Cursor[R]) outview.Cursor[R] {
		return outview.TakeWhile(dst, p)
	}}
}

// TakeUntilReadWriter bounds the destination of range transfers on inner
// the way TakeUntil does.
func TakeUntilReadWriter[W, R any](inner RangeReadWriter[W, R], p func(R) bool) RangeReadWriter[W, R] {
	return &takeReadWriter[W, R]{inner: inner, wrap: func(dst outview.Cursor[R]) outview.Cursor[R] {
		return outview.TakeUntil(dst, p)
	}}
}

type takeReadWriter[W, R any] struct {
	inner RangeReadWriter[W, R]
	wrap  func(outview.Cursor[R]) outview.Cursor[R]
}

func (rw *takeReadWriter[W, R]) ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender {
	return rw.inner.ReadWriteRange(in, rw.wrap(out))
}
