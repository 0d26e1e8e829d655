package stream

// Pipe applies stages to s from left to right:
//
//	w := stream.Pipe(leaf,
//		func(w stream.Writer[int]) stream.Writer[int] { return stream.FilterWriter(w, positive) },
//		func(w stream.Writer[int]) stream.Writer[int] { return stream.ActionWriter(w, gate) },
//	)
func Pipe[S any](s S, stages ...func(S) S) S {
	for _, stage := range stages {
		s = stage(s)
	}
	return s
}

// Then composes two stages whose stream types differ, such as a transform
// followed by a filter.
func Then[A, B, C any](f func(A) B, g func(B) C) func(A) C {
	return func(a A) C {
		return g(f(a))
	}
}
