/*
Package loop provides the cooperative run loop that drives deferred
completions of gostream endpoints.

Endpoints that cannot complete an asynchronous operation in-line either
post a task or register a poller:

	lp := loop.New(loop.Config{Name: "io"})

	// From an interrupt handler, a cron job or any other goroutine:
	lp.Post(func() { token.Done() })

	// A condition checked on every tick, such as a FIFO becoming non-empty:
	h := lp.Poll(func() bool {
		if fifo.Len() == 0 {
			return false
		}
		token.Done()
		return true
	})

Every task and poller runs on the goroutine that drives the loop, so the
single-threaded combinator state of package stream is never touched
concurrently. Drive the loop with Run in production, or tick it by hand
with RunOnce and Drain in tests.
*/
package loop
