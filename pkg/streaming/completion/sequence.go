package completion

// stage tracks which child of a sequenced operation is outstanding.
type stage uint8

const (
	stageFirst stage = iota
	stageSecond
)

// Then returns a Sender that submits first and, only once first signals
// done, submits second. The caller's token completes with second's outcome;
// an error or cancellation of first is forwarded and second is never
// submitted. Cancel is routed to whichever child is outstanding.
func Then(first, second Sender) Sender {
	return &thenSender{first: first, second: second}
}

type thenSender struct {
	first  Sender
	second Sender
	stage  stage
}

func (s *thenSender) Submit() error {
	if err := s.first.Submit(); err != nil {
		return err
	}
	return s.second.Submit()
}

func (s *thenSender) SubmitAsync(t Token) {
	// first may complete before SubmitAsync returns; the stage is switched
	// inside its done callback.
	s.stage = stageFirst
	s.first.SubmitAsync(t.WithDone(func() {
		s.stage = stageSecond
		s.second.SubmitAsync(t)
	}))
}

func (s *thenSender) Cancel() {
	if s.stage == stageFirst {
		s.first.Cancel()
		return
	}
	s.second.Cancel()
}

// ThenRead is Then for a second operation that produces a value.
func ThenRead[T any](first Sender, second ReadSender[T]) ReadSender[T] {
	return &thenReadSender[T]{first: first, second: second}
}

type thenReadSender[T any] struct {
	first  Sender
	second ReadSender[T]
	stage  stage
}

func (s *thenReadSender[T]) Submit() (T, error) {
	if err := s.first.Submit(); err != nil {
		var zero T
		return zero, err
	}
	return s.second.Submit()
}

func (s *thenReadSender[T]) SubmitAsync(t ReadToken[T]) {
	s.stage = stageFirst
	s.first.SubmitAsync(Token{
		OnError:     t.OnError,
		OnCancelled: t.OnCancelled,
		OnDone: func() {
			s.stage = stageSecond
			s.second.SubmitAsync(t)
		},
	})
}

func (s *thenReadSender[T]) Cancel() {
	if s.stage == stageFirst {
		s.first.Cancel()
		return
	}
	s.second.Cancel()
}
