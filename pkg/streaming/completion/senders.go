package completion

// Elided returns a Sender for an operation that was decided to be a no-op.
// Both paths succeed immediately; Cancel does nothing.
func Elided() Sender {
	return elided{}
}

type elided struct{}

func (elided) Submit() error        { return nil }
func (elided) SubmitAsync(t Token) { t.Done() }
func (elided) Cancel()             {}

// Func returns a Sender that runs fn in-line on both paths. On the
// asynchronous path a non-nil error is reported through the token as its
// Code, or as code 0 when fn returned a plain error.
func Func(fn func() error) Sender {
	return &funcSender{fn: fn}
}

type funcSender struct {
	fn func() error
}

func (s *funcSender) Submit() error {
	return s.fn()
}

func (s *funcSender) SubmitAsync(t Token) {
	if err := s.fn(); err != nil {
		c, _ := CodeOf(err)
		t.Error(c)
		return
	}
	t.Done()
}

func (s *funcSender) Cancel() {}

// FuncRead is the ReadSender counterpart of Func.
func FuncRead[T any](fn func() (T, error)) ReadSender[T] {
	return &funcReadSender[T]{fn: fn}
}

type funcReadSender[T any] struct {
	fn func() (T, error)
}

func (s *funcReadSender[T]) Submit() (T, error) {
	return s.fn()
}

func (s *funcReadSender[T]) SubmitAsync(t ReadToken[T]) {
	v, err := s.fn()
	if err != nil {
		c, _ := CodeOf(err)
		t.Error(c)
		return
	}
	t.Done(v)
}

func (s *funcReadSender[T]) Cancel() {}

// Map returns a ReadSender whose successful result is f applied to the
// result of inner. Errors and cancellation are forwarded unmodified.
func Map[T, U any](inner ReadSender[T], f func(T) U) ReadSender[U] {
	return &mapSender[T, U]{inner: inner, f: f}
}

type mapSender[T, U any] struct {
	inner ReadSender[T]
	f     func(T) U
}

func (s *mapSender[T, U]) Submit() (U, error) {
	v, err := s.inner.Submit()
	if err != nil {
		var zero U
		return zero, err
	}
	return s.f(v), nil
}

func (s *mapSender[T, U]) SubmitAsync(t ReadToken[U]) {
	s.inner.SubmitAsync(MapDone(t, s.f))
}

func (s *mapSender[T, U]) Cancel() {
	s.inner.Cancel()
}

// MapDone adapts t so that it can be handed to an operation producing T:
// the done payload is mapped through f before reaching t.
func MapDone[T, U any](t ReadToken[U], f func(T) U) ReadToken[T] {
	return ReadToken[T]{
		OnError:     t.OnError,
		OnCancelled: t.OnCancelled,
		OnDone:      func(v T) { t.Done(f(v)) },
	}
}
