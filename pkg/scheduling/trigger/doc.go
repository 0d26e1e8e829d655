/*
Package trigger schedules jobs on cron expressions and runs them on a loop.

The cron goroutine never runs a job itself: each fire is posted into a
loop.Loop, so jobs can submit stream operations without any locking.

	lp := loop.New(loop.Config{Name: "main"})
	tr, err := trigger.New(lp, trigger.Config{Location: time.UTC})
	if err != nil {
		log.Fatal(err)
	}

	// Write a heartbeat every 30 seconds.
	tr.AddSubmit("@every 30s", func() completion.Sender {
		return out.WriteString("ping\n")
	}, completion.Token{OnError: reportCode})

	tr.Start()
	defer func() { <-tr.Stop().Done() }()

	lp.Run(ctx)

Specs take five fields, or six with a leading seconds field, plus the
descriptors @yearly, @monthly, @weekly, @daily, @hourly and @every <duration>.

Options.SkipIfPending drops a fire while the previous one still waits on the
loop, and Options.MaxRuns removes a job after a number of runs.
*/
package trigger
