package outview_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/vnykmshr/gostream/pkg/streaming/outview"
)

func notFive(v int) bool { return v != 5 }

func TestCopy(t *testing.T) {
	t.Run("stops at destination end", func(t *testing.T) {
		buf := make([]int, 2)
		n := outview.Copy(slices.Values([]int{1, 2, 3}), outview.Slice(buf))
		assert.Equal(t, 2, n)
		assert.Equal(t, []int{1, 2}, buf)
	})

	t.Run("stops at source end", func(t *testing.T) {
		buf := make([]int, 4)
		c := outview.Slice(buf)
		n := outview.Copy(slices.Values([]int{1, 2}), c)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, c.Written())
		assert.Equal(t, []int{1, 2}, c.Filled())
	})

	t.Run("never pulls an element it cannot place", func(t *testing.T) {
		pulled := 0
		src := func(yield func(int) bool) {
			for i := 0; i < 10; i++ {
				pulled++
				if !yield(i) {
					return
				}
			}
		}
		outview.Copy(src, outview.Slice(make([]int, 3)))
		assert.Equal(t, 3, pulled)
	})

	t.Run("done destination takes nothing", func(t *testing.T) {
		assert.Equal(t, 0, outview.Copy(slices.Values([]int{1}), outview.Slice([]int(nil))))
	})
}

func TestPut(t *testing.T) {
	buf := make([]string, 1)
	c := outview.Slice(buf)
	assert.True(t, outview.Put[string](c, "a"))
	assert.False(t, outview.Put[string](c, "b"))
	assert.Equal(t, []string{"a"}, buf)
}

func TestTransform(t *testing.T) {
	buf := make([]string, 3)
	c := outview.Transform(outview.Slice(buf), func(v int) string { return string(rune('a' + v)) })
	n := outview.Copy(slices.Values([]int{0, 1, 2, 3}), c)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, buf)
	assert.True(t, c.Done())
}

func TestFilter(t *testing.T) {
	buf := make([]int, 3)
	outview.Copy(slices.Values([]int{0, 5, 1, 5, 0}), outview.Filter(outview.Slice(buf), notFive))
	assert.Equal(t, []int{0, 1, 0}, buf)
}

func TestFilterNested(t *testing.T) {
	buf := make([]int, 4)
	even := func(v int) bool { return v%2 == 0 }
	c := outview.Filter(outview.Filter(outview.Slice(buf), notFive), even)
	outview.Copy(slices.Values([]int{5, 2, 3, 4, 10, 6, 8}), c)
	assert.Equal(t, []int{2, 4, 10, 6}, buf)
}

func TestTakeWhile(t *testing.T) {
	notTwo := func(v int) bool { return v != 2 }

	tests := []struct {
		name string
		src  []int
		want []int
	}{
		{"stops at first rejection", []int{1, 2, 3}, []int{1, 0, 0}},
		{"fills when all accepted", []int{1, 3, 4}, []int{1, 3, 4}},
		{"rejects first", []int{2, 1, 1}, []int{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]int, 3)
			c := outview.TakeWhile(outview.Slice(buf), notTwo)
			outview.Copy(slices.Values(tt.src), c)
			assert.Equal(t, tt.want, buf)
		})
	}

	t.Run("done after rejection", func(t *testing.T) {
		c := outview.TakeWhile(outview.Slice(make([]int, 5)), notTwo)
		n := outview.Copy(slices.Values([]int{1, 2, 3, 4}), c)
		assert.Equal(t, 2, n)
		assert.True(t, c.Done())
	})
}

func TestTakeUntil(t *testing.T) {
	isOne := func(v int) bool { return v == 1 }

	buf := make([]int, 3)
	c := outview.TakeUntil(outview.Slice(buf), isOne)
	n := outview.Copy(slices.Values([]int{3, 1, 2}), c)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{3, 1, 0}, buf)
	assert.True(t, c.Done())

	buf = make([]int, 2)
	n = outview.Copy(slices.Values([]int{4, 5, 1}), outview.TakeUntil(outview.Slice(buf), isOne))
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{4, 5}, buf)
}

func TestFilterCompaction(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOf(rapid.IntRange(0, 9)).Draw(t, "src")
		size := rapid.IntRange(0, 12).Draw(t, "size")
		threshold := rapid.IntRange(0, 9).Draw(t, "threshold")
		p := func(v int) bool { return v >= threshold }

		var want []int
		for _, v := range src {
			if p(v) && len(want) < size {
				want = append(want, v)
			}
		}

		c := outview.Slice(make([]int, size))
		outview.Copy(slices.Values(src), outview.Filter(c, p))
		if !slices.Equal(c.Filled(), want) {
			t.Fatalf("filled %v, want %v", c.Filled(), want)
		}
	})
}

func TestTakeWhilePrefix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOf(rapid.IntRange(0, 9)).Draw(t, "src")
		size := rapid.IntRange(0, 12).Draw(t, "size")
		p := func(v int) bool { return v != 0 }

		var want []int
		for _, v := range src {
			if !p(v) || len(want) == size {
				break
			}
			want = append(want, v)
		}

		c := outview.Slice(make([]int, size))
		outview.Copy(slices.Values(src), outview.TakeWhile(c, p))
		if !slices.Equal(c.Filled(), want) {
			t.Fatalf("filled %v, want %v", c.Filled(), want)
		}
	})
}

func TestTransformRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOf(rapid.Int()).Draw(t, "src")
		buf := make([]int, len(src))
		inc := func(v int) int { return v + 1 }
		dec := func(v int) int { return v - 1 }
		outview.Copy(slices.Values(src), outview.Transform(outview.Transform(outview.Slice(buf), dec), inc))
		if !slices.Equal(buf, src) {
			t.Fatalf("got %v, want %v", buf, src)
		}
	})
}
