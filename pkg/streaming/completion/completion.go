package completion

import (
	"errors"
	"strconv"
)

// Code is an opaque error code reported by a failed operation.
// The zero value is a valid code; its meaning is defined by the endpoint
// that reports it.
type Code int

// Error implements the error interface so codes can travel through the
// blocking path as ordinary Go errors.
func (c Code) Error() string {
	return "stream: error code " + strconv.Itoa(int(c))
}

// CodeOf extracts the Code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return 0, false
}

// Token is the callback triple supplied to an asynchronous submission of an
// operation that completes without a payload (writes and range transfers).
// Exactly one of the callbacks fires, exactly once, per submission.
type Token struct {
	OnError     func(Code)
	OnCancelled func()
	OnDone      func()
}

// Error signals failure.
func (t Token) Error(c Code) {
	if t.OnError != nil {
		t.OnError(c)
	}
}

// Cancelled signals that the operation was aborted by Cancel.
func (t Token) Cancelled() {
	if t.OnCancelled != nil {
		t.OnCancelled()
	}
}

// Done signals success.
func (t Token) Done() {
	if t.OnDone != nil {
		t.OnDone()
	}
}

// WithDone returns a copy of t whose success callback is replaced by fn.
// Error and cancellation pass through unchanged.
func (t Token) WithDone(fn func()) Token {
	return Token{OnError: t.OnError, OnCancelled: t.OnCancelled, OnDone: fn}
}

// ReadToken is the payload-carrying specialization of Token used by reads.
type ReadToken[T any] struct {
	OnError     func(Code)
	OnCancelled func()
	OnDone      func(T)
}

// Error signals failure.
func (t ReadToken[T]) Error(c Code) {
	if t.OnError != nil {
		t.OnError(c)
	}
}

// Cancelled signals that the operation was aborted by Cancel.
func (t ReadToken[T]) Cancelled() {
	if t.OnCancelled != nil {
		t.OnCancelled()
	}
}

// Done signals success with the value read.
func (t ReadToken[T]) Done(v T) {
	if t.OnDone != nil {
		t.OnDone(v)
	}
}

// WithDone returns a copy of t whose success callback is replaced by fn.
func (t ReadToken[T]) WithDone(fn func(T)) ReadToken[T] {
	return ReadToken[T]{OnError: t.OnError, OnCancelled: t.OnCancelled, OnDone: fn}
}

// Sender is the per-operation handle returned by write and range operations.
//
// A Sender is single-use: call either Submit or SubmitAsync, once.
type Sender interface {
	// Submit performs the whole operation in-line and reports failure as an
	// error. It never invokes a token and therefore cannot report
	// cancellation.
	Submit() error

	// SubmitAsync arranges for exactly one callback of t to fire, either
	// before SubmitAsync returns or later.
	SubmitAsync(t Token)

	// Cancel requests cancellation of the pending asynchronous submission.
	// It is only valid while a SubmitAsync call is outstanding.
	Cancel()
}

// ReadSender is the per-operation handle returned by single-value reads.
type ReadSender[T any] interface {
	// Submit performs the read in-line and returns the value.
	Submit() (T, error)

	// SubmitAsync arranges for exactly one callback of t to fire.
	SubmitAsync(t ReadToken[T])

	// Cancel requests cancellation of the pending asynchronous submission.
	Cancel()
}
