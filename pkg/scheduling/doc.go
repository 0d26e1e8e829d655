/*
Package scheduling provides time-based triggering for streams.

Package trigger posts cron fires into a loop, where jobs can submit stream
operations:

	tr, _ := trigger.New(lp, trigger.Config{})
	tr.Add("@every 10s", func() { flush() })
	tr.Start()
*/
package scheduling
