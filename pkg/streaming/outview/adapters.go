package outview

// Transform returns a cursor that writes f(v) into dst for every value
// assigned to it. It advances with dst and is done when dst is done.
func Transform[T, U any](dst Cursor[U], f func(T) U) Cursor[T] {
	return &transformCursor[T, U]{dst: dst, f: f}
}

type transformCursor[T, U any] struct {
	dst Cursor[U]
	f   func(T) U
}

func (c *transformCursor[T, U]) Ref() Ref[T] {
	return RefFunc[T](func(v T) { c.dst.Ref().Assign(c.f(v)) })
}

func (c *transformCursor[T, U]) Next()      { c.dst.Next() }
func (c *transformCursor[T, U]) Done() bool { return c.dst.Done() }

// Filter returns a cursor that forwards a value to dst only when p accepts
// it. A rejected value leaves dst where it was, so accepted values are
// compacted into consecutive slots.
func Filter[T any](dst Cursor[T], p func(T) bool) Cursor[T] {
	return &filterCursor[T]{dst: dst, p: p}
}

type filterCursor[T any] struct {
	dst      Cursor[T]
	p        func(T) bool
	accepted bool
}

func (c *filterCursor[T]) Ref() Ref[T] {
	return RefFunc[T](func(v T) {
		c.accepted = c.p(v)
		if c.accepted {
			c.dst.Ref().Assign(v)
		}
	})
}

func (c *filterCursor[T]) Next() {
	if c.accepted {
		c.accepted = false
		c.dst.Next()
	}
}

func (c *filterCursor[T]) Done() bool { return c.dst.Done() }

// TakeWhile returns a cursor that writes values into dst while p accepts
// them. The first rejected value is discarded and the cursor becomes done,
// without advancing dst.
func TakeWhile[T any](dst Cursor[T], p func(T) bool) Cursor[T] {
	return &boundedCursor[T]{dst: dst, p: p}
}

// TakeUntil returns a cursor that writes every value into dst up to and
// including the first one matching p, after which it is done.
func TakeUntil[T any](dst Cursor[T], p func(T) bool) Cursor[T] {
	return &boundedCursor[T]{dst: dst, p: p, inclusive: true}
}

type boundedCursor[T any] struct {
	dst       Cursor[T]
	p         func(T) bool
	inclusive bool

	// stop is set by Assign and takes effect at the following Next.
	stop      bool
	exhausted bool
}

func (c *boundedCursor[T]) Ref() Ref[T] {
	return RefFunc[T](func(v T) {
		match := c.p(v)
		if !c.inclusive {
			if !match {
				c.exhausted = true
				return
			}
			c.dst.Ref().Assign(v)
			return
		}
		c.dst.Ref().Assign(v)
		c.stop = match
	})
}

func (c *boundedCursor[T]) Next() {
	if c.exhausted {
		return
	}
	c.dst.Next()
	if c.stop {
		c.exhausted = true
	}
}

func (c *boundedCursor[T]) Done() bool {
	return c.exhausted || c.dst.Done()
}
