/*
Package completion defines the vocabulary shared by every asynchronous
operation in gostream: error codes, completion tokens and senders.

Every stream operation returns a Sender (or a ReadSender for single-value
reads). A Sender offers two mutually exclusive ways to run the operation:

	// Blocking: performs the whole operation in-line.
	err := s.Submit()

	// Non-blocking: exactly one callback fires, exactly once.
	s.SubmitAsync(completion.Token{
		OnError:     func(c completion.Code) { ... },
		OnCancelled: func() { ... },
		OnDone:      func() { ... },
	})

The token may fire before SubmitAsync returns or at any later point; callers
must accept either timing. Cancel is only valid while an asynchronous
submission is outstanding, and it results in the OnCancelled callback once the
endpoint honours it.

Composing senders:

	completion.Then(pre, write)          // submit write only after pre is done
	completion.Map(read, strconv.Itoa)   // map the done payload of a read
	completion.Elided()                  // succeed without doing anything

Codes are opaque integers. They implement error, so the blocking path returns
them directly and CodeOf recovers them from wrapped errors.
*/
package completion
