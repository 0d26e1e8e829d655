package outview

// SliceCursor is a Cursor over the elements of a slice.
type SliceCursor[T any] struct {
	buf []T
	pos int
}

// Slice returns a cursor positioned at the first element of buf.
func Slice[T any](buf []T) *SliceCursor[T] {
	return &SliceCursor[T]{buf: buf}
}

// Ref implements Cursor.
func (c *SliceCursor[T]) Ref() Ref[T] {
	return sliceRef[T]{c: c}
}

// Next implements Cursor.
func (c *SliceCursor[T]) Next() {
	c.pos++
}

// Done implements Cursor.
func (c *SliceCursor[T]) Done() bool {
	return c.pos >= len(c.buf)
}

// Written returns the number of slots the cursor has advanced past.
func (c *SliceCursor[T]) Written() int {
	return c.pos
}

// Filled returns the prefix of the underlying slice that has been written.
func (c *SliceCursor[T]) Filled() []T {
	return c.buf[:c.pos]
}

type sliceRef[T any] struct {
	c *SliceCursor[T]
}

func (r sliceRef[T]) Assign(v T) {
	r.c.buf[r.c.pos] = v
}
