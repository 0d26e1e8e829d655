package bucket

import (
	"context"

	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
	"github.com/vnykmshr/gostream/pkg/streaming/stream"
)

// CodeDenied is reported when the limiter can never grant the tokens, or
// when an asynchronous gate has no loop to wait on.
const CodeDenied completion.Code = 300

// Gate returns a pre-action that takes one token from l. Use it with
// stream.ActionWriter and friends to pace an endpoint.
func Gate(l Limiter, lp *loop.Loop) stream.Action {
	return GateN(l, lp, 1)
}

// GateN is Gate for n tokens per operation.
//
// A blocking submit waits for the tokens. An asynchronous submit takes them
// in-line when available, otherwise it polls the limiter on every tick of
// lp until they are.
func GateN(l Limiter, lp *loop.Loop, n int) stream.Action {
	return func() completion.Sender {
		return &gate{l: l, lp: lp, n: n}
	}
}

type gate struct {
	l  Limiter
	lp *loop.Loop
	n  int

	handle *loop.Handle
	token  completion.Token
}

func (g *gate) Submit() error {
	if err := g.l.WaitN(context.Background(), g.n); err != nil {
		return CodeDenied
	}
	return nil
}

func (g *gate) SubmitAsync(t completion.Token) {
	if g.l.AllowN(g.n) {
		t.Done()
		return
	}
	if g.lp == nil || g.l.Limit() == 0 || g.n > g.l.Burst() {
		t.Error(CodeDenied)
		return
	}

	g.token = t
	g.handle = g.lp.Poll(func() bool {
		if g.l.Tokens() < float64(g.n) || !g.l.AllowN(g.n) {
			return false
		}
		t.Done()
		return true
	})
}

func (g *gate) Cancel() {
	if g.handle == nil || g.handle.Stopped() {
		return
	}
	g.handle.Stop()
	g.token.Cancelled()
}
