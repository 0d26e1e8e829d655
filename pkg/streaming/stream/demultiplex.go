package stream

import (
	"iter"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
)

// Demultiplex returns a Writer that delivers every write to a and then to
// b. The second write is submitted only after the first is done; the
// caller's token completes after both, or with the first error or
// cancellation. Nest Demultiplex to fan out to more than two streams.
func Demultiplex[T any](a, b Writer[T]) Writer[T] {
	return &demultiplexer[T]{a: a, b: b}
}

type demultiplexer[T any] struct {
	a, b Writer[T]
}

func (d *demultiplexer[T]) Write(v T) completion.Sender {
	return completion.Then(d.a.Write(v), d.b.Write(v))
}

// WriteRange hands the same sequence to both children; it must be
// re-iterable.
func (d *demultiplexer[T]) WriteRange(r iter.Seq[T]) completion.Sender {
	return completion.Then(d.a.WriteRange(r), d.b.WriteRange(r))
}
