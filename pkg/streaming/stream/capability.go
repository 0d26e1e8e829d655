package stream

import (
	"iter"
	"strings"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

// ValueWriter writes single values.
type ValueWriter[T any] interface {
	Write(v T) completion.Sender
}

// RangeWriter writes every element of a sequence. The sequence is consumed
// when the returned sender is submitted, not when WriteRange is called.
type RangeWriter[T any] interface {
	WriteRange(r iter.Seq[T]) completion.Sender
}

// Writer is a write-capable stream.
type Writer[T any] interface {
	ValueWriter[T]
	RangeWriter[T]
}

// ValueReader reads single values.
type ValueReader[T any] interface {
	Read() completion.ReadSender[T]
}

// RangeReader reads elements into a destination cursor until the cursor is
// done or the endpoint decides the transfer is complete.
type RangeReader[T any] interface {
	ReadRange(dst outview.Cursor[T]) completion.Sender
}

// Reader is a read-capable stream.
type Reader[T any] interface {
	ValueReader[T]
	RangeReader[T]
}

// ValueReadWriter performs a combined transfer: one value out, one value in.
type ValueReadWriter[W, R any] interface {
	ReadWrite(v W) completion.ReadSender[R]
}

// RangeReadWriter transfers a whole input sequence while clocking data into
// a destination cursor.
type RangeReadWriter[W, R any] interface {
	ReadWriteRange(in iter.Seq[W], out outview.Cursor[R]) completion.Sender
}

// ReadWriter is a read-write-capable stream.
type ReadWriter[W, R any] interface {
	ValueReadWriter[W, R]
	RangeReadWriter[W, R]
}

// Capability is the set of stream interfaces a value satisfies.
type Capability uint8

// Capability bits.
const (
	CanWrite Capability = 1 << iota
	CanRead
	CanReadWrite
)

// Has reports whether every bit of o is set in c.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c.Has(CanWrite) {
		parts = append(parts, "write")
	}
	if c.Has(CanRead) {
		parts = append(parts, "read")
	}
	if c.Has(CanReadWrite) {
		parts = append(parts, "readwrite")
	}
	return strings.Join(parts, "|")
}

// Classify reports which of Writer[W], Reader[R] and ReadWriter[W, R] s
// implements.
func Classify[W, R any](s any) Capability {
	var c Capability
	if _, ok := s.(Writer[W]); ok {
		c |= CanWrite
	}
	if _, ok := s.(Reader[R]); ok {
		c |= CanRead
	}
	if _, ok := s.(ReadWriter[W, R]); ok {
		c |= CanReadWrite
	}
	return c
}
