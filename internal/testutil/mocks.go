package testutil

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// MockClock is a manually advanced clock satisfying bucket.Clock.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock reading start. A zero start means the
// current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// ErrSimulated is returned by a MockWriter configured with SetErrorOnNth.
var ErrSimulated = errors.New("simulated error")

// MockWriter is an io.Writer recording every accepted chunk. It can fail
// or accept short.
type MockWriter struct {
	mu     sync.Mutex
	chunks [][]byte
	calls  int

	failNth int
	failAll error
	shortBy int
}

// NewMockWriter creates a MockWriter that accepts everything.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements io.Writer.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.calls++
	switch {
	case mw.failAll != nil:
		return 0, mw.failAll
	case mw.failNth > 0 && mw.calls == mw.failNth:
		return 0, ErrSimulated
	}

	n := len(p)
	if mw.shortBy > 0 && n > mw.shortBy {
		n -= mw.shortBy
	}
	mw.chunks = append(mw.chunks, append([]byte(nil), p[:n]...))
	return n, nil
}

// Chunks returns the accepted bytes of each successful Write call.
func (mw *MockWriter) Chunks() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	out := make([]string, len(mw.chunks))
	for i, c := range mw.chunks {
		out[i] = string(c)
	}
	return out
}

// Bytes returns everything accepted so far.
func (mw *MockWriter) Bytes() []byte {
	return []byte(mw.String())
}

// String returns everything accepted so far.
func (mw *MockWriter) String() string {
	return strings.Join(mw.Chunks(), "")
}

// WriteCount returns the number of Write calls, failed ones included.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.calls
}

// SetErrorOnNth makes the nth Write call fail with ErrSimulated.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failNth = n
}

// SetAlwaysError makes every later Write call fail with err.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failAll = err
}

// SetShortBy makes every write longer than n bytes accept n bytes less than
// requested, without reporting an error.
func (mw *MockWriter) SetShortBy(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shortBy = n
}
