package stream

import "iter"

// mapSeq maps r lazily; f runs as the consumer pulls each element.
func mapSeq[T, U any](r iter.Seq[T], f func(T) U) iter.Seq[U] {
	return func(yield func(U) bool) {
		for v := range r {
			if !yield(f(v)) {
				return
			}
		}
	}
}

// filterSeq yields the elements of r accepted by p, lazily.
func filterSeq[T any](r iter.Seq[T], p func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range r {
			if p(v) && !yield(v) {
				return
			}
		}
	}
}
