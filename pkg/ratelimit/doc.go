/*
Package ratelimit provides rate limiting primitives for paced streams.

  - bucket: Token bucket rate limiter allowing burst traffic
  - distributed: Token bucket whose state is shared through Redis

Both packages provide a Gate that turns the limiter into a pre-action for
stream.ActionWriter, stream.ActionReader and stream.ActionReadWriter:

	limiter, _ := bucket.New(100, 10) // 100 tokens/sec, burst of 10
	paced := stream.ActionWriter(out, bucket.Gate(limiter, lp))

A blocking submission waits for its token. An asynchronous one takes the
token in-line when it can and otherwise parks on the loop until one is
available, so the loop goroutine never sleeps.

When multiple instances must share one budget, use distributed with a
local bucket as fallback for Redis outages:

	local, _ := bucket.New(10, 10)
	shared, _ := distributed.New(ctx, distributed.Config{
		Redis:    rdb,
		Key:      "uplink",
		Rate:     100,
		Burst:    10,
		Fallback: local,
	})
	paced := stream.ActionWriter(out, distributed.Gate(shared, lp))
*/
package ratelimit
