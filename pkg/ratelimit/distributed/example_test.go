package distributed_test

import (
	"context"
	"fmt"
	"log"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/gostream/internal/testutil"
	"github.com/vnykmshr/gostream/pkg/ratelimit/distributed"
	"github.com/vnykmshr/gostream/pkg/streaming/stream"
)

func Example() {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	limiter, err := distributed.New(ctx, distributed.Config{
		Redis:      rdb,
		Key:        "api_limiter",
		Rate:       1,
		Burst:      3,
		InstanceID: "server-1",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = limiter.Close() }()

	for i := 1; i <= 4; i++ {
		fmt.Printf("request %d allowed: %v\n", i, limiter.Allow(ctx))
	}

	stats, _ := limiter.Stats(ctx)
	fmt.Printf("allowed=%d denied=%d instances=%v\n",
		stats.AllowedRequests, stats.DeniedRequests, stats.ActiveInstances)

	// Output:
	// request 1 allowed: true
	// request 2 allowed: true
	// request 3 allowed: true
	// request 4 allowed: false
	// allowed=3 denied=1 instances=[server-1]
}

func Example_multipleInstances() {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()

	ctx := context.Background()
	newInstance := func(id string) *distributed.Limiter {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		l, err := distributed.New(ctx, distributed.Config{
			Redis: rdb, Key: "shared", Rate: 1, Burst: 2, InstanceID: id,
		})
		if err != nil {
			log.Fatal(err)
		}
		return l
	}

	a, b := newInstance("a"), newInstance("b")
	fmt.Println(a.Allow(ctx), b.Allow(ctx), a.Allow(ctx))

	// Output: true true false
}

func ExampleGate() {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := distributed.New(context.Background(), distributed.Config{
		Redis: rdb, Key: "uplink", Rate: 1, Burst: 1,
	})
	if err != nil {
		log.Fatal(err)
	}

	sink := testutil.NewWriteMock[string](testutil.Immediate)
	paced := stream.ActionWriter[string](sink, distributed.Gate(limiter, nil))

	fmt.Println(paced.Write("first").Submit())
	fmt.Println(sink.Written)

	// Output:
	// <nil>
	// [first]
}
