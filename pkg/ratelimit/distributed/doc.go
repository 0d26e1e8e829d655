// Package distributed provides a token bucket shared by several
// application instances through Redis.
//
// Every attempt to take tokens is a single Lua script run, so instances
// never race on the bucket state. The refill rate and capacity live in Redis
// as well; SetRate and SetBurst on any instance apply to all of them.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	limiter, err := distributed.New(ctx, distributed.Config{
//		Redis: rdb,
//		Key:   "api_limiter",
//		Rate:  100, // tokens per second
//		Burst: 200,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer limiter.Close()
//
//	if limiter.Allow(ctx) {
//		// Process request
//	}
//
// Instances are told apart by Config.InstanceID, which defaults to a random
// UUID. Stats lists the instances currently registered.
//
// # Fallback
//
// When Redis cannot be reached, a local bucket.Limiter can take over:
//
//	local, _ := bucket.New(10, 20)
//	cfg.Fallback = local
//
// Without a fallback, requests are denied while Redis is down.
//
// # Pacing a stream
//
// Gate adapts the limiter into a pre-action for the stream combinators, so
// writes to a shared endpoint are paced across the whole fleet:
//
//	paced := stream.ActionWriter(uplink, distributed.Gate(limiter, lp))
//
// An asynchronous gate that finds no token registers a poller on the loop
// and only asks Redis again once the delay it reported has passed.
package distributed
