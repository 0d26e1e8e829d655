package completion

import "errors"

// ErrCompletedTwice is the panic value raised by guarded tokens when an
// operation signals completion more than once.
var ErrCompletedTwice = errors.New("completion: token fired more than once")

// Guard wraps t so that any second firing, of any of its callbacks, panics
// with ErrCompletedTwice. Leaf endpoints use it to enforce the exactly-once
// rule at the source.
func Guard(t Token) Token {
	fired := false
	once := func() {
		if fired {
			panic(ErrCompletedTwice)
		}
		fired = true
	}
	return Token{
		OnError:     func(c Code) { once(); t.Error(c) },
		OnCancelled: func() { once(); t.Cancelled() },
		OnDone:      func() { once(); t.Done() },
	}
}

// GuardRead is Guard for read tokens.
func GuardRead[T any](t ReadToken[T]) ReadToken[T] {
	fired := false
	once := func() {
		if fired {
			panic(ErrCompletedTwice)
		}
		fired = true
	}
	return ReadToken[T]{
		OnError:     func(c Code) { once(); t.Error(c) },
		OnCancelled: func() { once(); t.Cancelled() },
		OnDone:      func(v T) { once(); t.Done(v) },
	}
}
