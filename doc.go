/*
Package gostream provides composable asynchronous streams for Go.

Every stream operation returns a sender that can be run blocking or
asynchronously with a completion token. Combinators wrap streams without
changing that contract, so pipelines can be assembled from small pieces.

Streaming (pkg/streaming):
  - completion: Error codes, tokens and senders
  - outview: Output cursors and the adapters that filter or bound them
  - stream: Capabilities and combinators (transform, filter, take-while,
    pre-action, demultiplex)
  - loop: Single-goroutine run loop that drives deferred completions
  - channel: In-memory FIFO endpoint with backpressure strategies
  - writer: io.Writer-backed byte endpoint

Rate Limiting (pkg/ratelimit):
  - bucket: Token bucket and a gate that paces a stream
  - distributed: Redis-backed token bucket shared by many instances

Scheduling (pkg/scheduling):
  - trigger: Cron schedules that submit work on a loop

Example usage:

	import (
		"github.com/vnykmshr/gostream/pkg/ratelimit/bucket"
		"github.com/vnykmshr/gostream/pkg/streaming/stream"
		"github.com/vnykmshr/gostream/pkg/streaming/writer"
	)

	limiter, _ := bucket.New(10, 20) // 10 writes/s, burst 20
	out := writer.New(conn, lp)

	paced := stream.ActionWriter(
		stream.FilterWriter(out, func(b byte) bool { return b != 0 }),
		bucket.Gate(limiter, lp),
	)
	err := paced.WriteRange(slices.Values(frame)).Submit()
*/
package gostream
