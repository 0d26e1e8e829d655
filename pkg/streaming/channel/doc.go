/*
Package channel provides a bounded FIFO leaf endpoint with configurable
backpressure.

A Channel implements the Writer, Reader and ReadWriter interfaces of package
stream, so it can sit under any combinator. Values written are read back in
order; ReadWrite is a loopback that writes a value and reads the oldest one.

Backpressure Strategies:

Block Strategy:
The default. An asynchronous write to a full channel parks on the loop until
a read makes room. A blocking write to a full channel fails with CodeFull,
since the blocking path never waits.

	lp := loop.New(loop.Config{Name: "io"})
	ch := channel.New[int](10, lp)

	ch.Write(v).SubmitAsync(completion.Token{OnDone: func() { ... }})

Drop Strategy:
Drops the value being written when the buffer is full. The write still
succeeds.

	ch, err := channel.NewWithConfig[int](channel.Config{
		BufferSize: 10,
		Strategy:   channel.Drop,
		OnDrop: func(value interface{}) {
			log.Printf("dropped: %v", value)
		},
	})

DropOldest Strategy:
Discards the oldest buffered value to make room for the new one.

Error Strategy:
Fails writes to a full channel with CodeFull.

Reads:

A blocking Read never waits: it fails with CodeEmpty, or with CodeClosed once
the channel is closed and drained. An asynchronous Read parks until a value
arrives. A blocking ReadRange transfers what is buffered; an asynchronous one
completes once the destination cursor is done.

Cancellation:

Cancel withdraws a parked operation and fires its token's cancelled
callback. Operations that completed in-line are unaffected.

Statistics:

	stats := ch.Stats()
	fmt.Printf("sent=%d received=%d dropped=%d utilization=%.2f\n",
		stats.SendCount, stats.ReceiveCount, stats.DroppedCount, stats.BufferUtilization)
*/
package channel
