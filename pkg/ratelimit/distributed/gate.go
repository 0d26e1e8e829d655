package distributed

import (
	"context"
	"time"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
	"github.com/vnykmshr/gostream/pkg/streaming/stream"
)

// Codes reported by gates.
const (
	CodeDenied      completion.Code = 310 + iota // tokens can never be granted
	CodeUnavailable                              // Redis failed and there is no fallback
)

// Gate returns a pre-action that takes one token from the shared bucket
// before each operation.
func Gate(l *Limiter, lp *loop.Loop) stream.Action {
	return GateN(l, lp, 1)
}

// GateN is Gate for n tokens per operation.
//
// A blocking submit waits with WaitN. An asynchronous submit tries once
// in-line; if the tokens are not there it registers a poller on lp that
// retries once the delay reported by Redis has passed. Redis round trips
// run on the loop goroutine and are bounded by Config.RedisTimeout.
func GateN(l *Limiter, lp *loop.Loop, n int) stream.Action {
	return func() completion.Sender {
		return &gate{l: l, lp: lp, n: n}
	}
}

type gate struct {
	l  *Limiter
	lp *loop.Loop
	n  int

	retryAt time.Time
	handle  *loop.Handle
	token   completion.Token
}

func (g *gate) Submit() error {
	if g.n > g.l.config.Burst {
		return CodeDenied
	}
	if err := g.l.WaitN(context.Background(), g.n); err != nil {
		return CodeUnavailable
	}
	return nil
}

func (g *gate) SubmitAsync(t completion.Token) {
	if g.n > g.l.config.Burst {
		t.Error(CodeDenied)
		return
	}
	if g.attempt(t) {
		return
	}
	if g.lp == nil {
		t.Error(CodeDenied)
		return
	}

	g.token = t
	g.handle = g.lp.Poll(func() bool {
		if g.l.config.Clock.Now().Before(g.retryAt) {
			return false
		}
		return g.attempt(t)
	})
}

// attempt reports whether t was completed.
func (g *gate) attempt(t completion.Token) bool {
	r, err := g.l.Reserve(context.Background(), g.n)
	switch {
	case err == nil && r.OK:
		t.Done()
		return true
	case err == nil:
		g.retryAt = r.AllowedAt
		return false
	case g.l.config.Fallback == nil:
		t.Error(CodeUnavailable)
		return true
	case g.l.config.Fallback.AllowN(g.n):
		t.Done()
		return true
	default:
		return false
	}
}

func (g *gate) Cancel() {
	if g.handle == nil || g.handle.Stopped() {
		return
	}
	g.handle.Stop()
	g.token.Cancelled()
}
