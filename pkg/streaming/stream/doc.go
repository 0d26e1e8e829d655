/*
Package stream provides composable combinators over asynchronous streams.

A stream is any value implementing one of the capability interfaces:
Writer, Reader or ReadWriter, or their single-value and range halves.
Every operation returns a completion.Sender, which is submitted either
blocking (Submit) or with a completion.Token (SubmitAsync).

Core Concepts:

Combinators wrap a stream and return a stream of the same capability, so
they nest without limit:

	w := stream.ActionWriter(
		stream.TransformWriter(uart, func(v int) byte { return byte(v) }),
		gate,
	)
	err := w.Write(42).Submit()

Capabilities are chosen once, by the constructor used. A combinator built
with FilterWriter never exposes Read, even when the wrapped value could.

Combinators:

  - TransformWriter, TransformReader, TransformReadWriter map values on the
    way in or out.
  - FilterWriter drops rejected writes without touching the inner stream;
    FilterReader retries single reads until a value is accepted and compacts
    range reads.
  - TakeWhile and TakeUntil bound range reads.
  - ActionWriter, ActionReader and ActionReadWriter run a pre-action before
    every operation.
  - Demultiplex writes to two streams in order.
  - Pipe and Then chain combinator constructors.

Ranges:

Range writes take an iter.Seq. Combinators never copy a range; they wrap
the sequence, and the wrapped sequence is consumed when the leaf endpoint
runs the operation. Range reads take an outview.Cursor, which combinators
wrap with the adapters of package outview.

Completion timing:

A token may fire before SubmitAsync returns or later, from whatever drives
the leaf endpoint (usually a loop.Loop). Combinators accept both. They hold
plain single-threaded state and must only be driven from one goroutine at a
time.

Instrumentation:

ObserveWriter, ObserveReader and ObserveReadWriter record Prometheus
metrics for every operation and log failures through the package logger
(see SetLogger).
*/
package stream
