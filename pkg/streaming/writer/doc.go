/*
Package writer adapts an io.Writer into a byte write endpoint.

A Stream implements stream.Writer[byte]. Every submitted value or range
results in exactly one call to the underlying Write, so a range is the
natural unit for framing:

	lp := loop.New(loop.Config{Name: "io"})
	w := writer.New(os.Stdout, lp)

	err := w.WriteRange(slices.Values([]byte("hello\n"))).Submit()

Blocking submissions write in-line. Asynchronous submissions are posted onto
the loop and complete when it runs them; cancelling before that fires the
cancelled callback and skips the write:

	s := w.WriteString("later\n")
	s.SubmitAsync(completion.Token{OnDone: func() { fmt.Println("written") }})
	lp.Drain(0)

# Errors

A Write that returns an error completes with CodeIO; one that accepts fewer
bytes than given completes with CodeShortWrite. In both cases the Go error is
logged and passed to Config.OnError:

	w := writer.NewWithConfig(conn, writer.Config{
		Loop:    lp,
		Name:    "uplink",
		Logger:  logger,
		OnError: func(err error) { reconnect(err) },
	})

# Combinators

Streams compose with the stream package like any other writer:

	framed := stream.TransformWriter(w, func(b byte) byte { return b ^ 0x20 })
	paced := stream.ActionWriter(framed, bucket.Gate(limiter, lp))

# Statistics

	stats := w.Stats()
	fmt.Printf("writes=%d bytes=%d errors=%d\n",
		stats.WriteCount, stats.BytesWritten, stats.ErrorCount)
*/
package writer
