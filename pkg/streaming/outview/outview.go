package outview

import "iter"

// Ref is the write proxy returned by Cursor.Ref. Assigning through it
// stores a value into the slot the cursor currently designates.
type Ref[T any] interface {
	Assign(v T)
}

// Cursor is a destination iterator. Done reports whether the cursor has
// reached its end; Ref and Next must not be called on a done cursor.
//
// The canonical write step is:
//
//	c.Ref().Assign(v)
//	c.Next()
type Cursor[T any] interface {
	Ref() Ref[T]
	Next()
	Done() bool
}

// RefFunc adapts a plain function to Ref.
type RefFunc[T any] func(v T)

// Assign calls f(v).
func (f RefFunc[T]) Assign(v T) { f(v) }

// Put writes v at the current position of dst and advances it. It reports
// false, without writing, when dst is already done.
func Put[T any](dst Cursor[T], v T) bool {
	if dst.Done() {
		return false
	}
	dst.Ref().Assign(v)
	dst.Next()
	return true
}

// Copy writes elements of src into dst until src is exhausted or dst is
// done, and returns the number of elements taken from src. An element is
// only pulled from src once dst has room for it.
func Copy[T any](src iter.Seq[T], dst Cursor[T]) int {
	if dst.Done() {
		return 0
	}
	n := 0
	for v := range src {
		dst.Ref().Assign(v)
		dst.Next()
		n++
		if dst.Done() {
			break
		}
	}
	return n
}
