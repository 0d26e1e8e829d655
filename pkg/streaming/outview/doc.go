/*
Package outview provides destination cursors and the adapters that let a
single range copy apply a transformation, a filter or a bound while writing.

A Cursor designates one slot at a time:

	buf := make([]int, 3)
	dst := outview.Filter(outview.Slice(buf), func(v int) bool { return v != 5 })
	outview.Copy(slices.Values([]int{0, 5, 1, 5, 0}), dst)
	// buf == [0 1 0]

Transform and Filter end where the wrapped cursor ends. TakeWhile and
TakeUntil can end earlier: TakeWhile on the first rejected value, TakeUntil
right after the first matching one. Adapters nest freely; nested filters
accept only values every predicate accepts.
*/
package outview
