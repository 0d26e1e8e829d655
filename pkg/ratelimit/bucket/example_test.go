package bucket_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vnykmshr/gostream/internal/testutil"
	"github.com/vnykmshr/gostream/pkg/ratelimit/bucket"
	"github.com/vnykmshr/gostream/pkg/streaming/completion"
	"github.com/vnykmshr/gostream/pkg/streaming/loop"
	"github.com/vnykmshr/gostream/pkg/streaming/stream"
)

func Example() {
	// 10 requests per second with a burst of 5.
	limiter, err := bucket.New(10, 5)
	if err != nil {
		log.Fatal(err)
	}

	if limiter.Allow() {
		fmt.Println("Request allowed")
	}

	// Output: Request allowed
}

func Example_wait() {
	limiter, err := bucket.New(1, 1)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println("First request processed")

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); err != nil {
		fmt.Printf("Second request failed: %v\n", err)
	}

	// Output:
	// First request processed
	// Second request failed: context deadline exceeded
}

func Example_reservation() {
	limiter, err := bucket.New(2, 3)
	if err != nil {
		log.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		limiter.Allow()
	}

	reservation := limiter.Reserve()
	if reservation.OK() {
		fmt.Printf("Need to wait %v before next request\n", reservation.Delay().Round(100*time.Millisecond))
		reservation.Cancel()
		fmt.Println("Reservation canceled")
	}

	// Output:
	// Need to wait 500ms before next request
	// Reservation canceled
}

func Example_configuration() {
	limiter, err := bucket.NewWithConfig(bucket.Config{
		Rate:          bucket.Every(100 * time.Millisecond),
		Burst:         5,
		InitialTokens: 2,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Initial tokens: %.0f\n", limiter.Tokens())
	fmt.Printf("Rate limit: %.1f/sec\n", limiter.Limit())
	fmt.Printf("Burst capacity: %d\n", limiter.Burst())

	// Output:
	// Initial tokens: 2
	// Rate limit: 10.0/sec
	// Burst capacity: 5
}

// ExampleGate paces a writer: every write first takes a token.
func ExampleGate() {
	clock := testutil.NewMockClock(time.Time{})
	limiter, _ := bucket.NewWithConfig(bucket.Config{Rate: 1, Burst: 1, Clock: clock, InitialTokens: -1})
	lp := loop.New(loop.Config{Name: "paced"})

	sink := testutil.NewWriteMock[string](testutil.Immediate)
	paced := stream.ActionWriter[string](sink, bucket.Gate(limiter, lp))

	for _, msg := range []string{"a", "b"} {
		paced.Write(msg).SubmitAsync(completion.Token{
			OnDone: func() { fmt.Println("sent", msg) },
		})
	}
	fmt.Println("waiting:", lp.Pending())

	clock.Advance(time.Second)
	lp.Drain(0)

	// Output:
	// sent a
	// waiting: 1
	// sent b
}
