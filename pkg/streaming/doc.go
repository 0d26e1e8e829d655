/*
Package streaming groups the asynchronous stream packages.

  - completion: the protocol every operation speaks (Code, Token, Sender)
  - outview: output cursors and their filtering and bounding adapters
  - stream: capabilities and combinators over any endpoint
  - loop: the run loop that drives deferred completions
  - channel: a bounded FIFO endpoint usable as writer, reader or loopback
  - writer: a byte endpoint over an io.Writer

Basic usage:

	lp := loop.New(loop.Config{Name: "main"})
	ch := channel.New[int](16, lp)

	doubled := stream.TransformWriter(ch, func(v int) int { return v * 2 })
	_ = doubled.WriteRange(slices.Values([]int{1, 2, 3})).Submit()

	buf := make([]int, 3)
	ch.ReadRange(outview.Slice(buf)).SubmitAsync(completion.Token{
		OnDone: func() { fmt.Println(buf) },
	})
	lp.Drain(0)
*/
package streaming
