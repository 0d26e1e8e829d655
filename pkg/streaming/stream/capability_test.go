package stream

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vnykmshr/gostream/internal/testutil"
)

func TestClassify(t *testing.T) {
	w := testutil.NewWriteMock[int](testutil.Immediate)
	r := testutil.NewReadMock[int](testutil.Immediate)
	rw := testutil.NewReadWriteMock(testutil.Immediate, func(v int) int { return v })

	assert.Equal(t, CanWrite, Classify[int, int](w))
	assert.Equal(t, CanRead, Classify[int, int](r))
	assert.Equal(t, CanReadWrite, Classify[int, int](rw))
	assert.Equal(t, Capability(0), Classify[int, int](42))

	// Combinators expose only the capability they were built for.
	assert.Equal(t, CanWrite, Classify[int, int](FilterWriter[int](w, notFive)))
	assert.Equal(t, Capability(0), Classify[int, int](TakeWhile[int](r, notFive)))

	assert.Equal(t, "write|read", (CanWrite | CanRead).String())
	assert.Equal(t, "none", Capability(0).String())
	assert.True(t, (CanWrite | CanRead).Has(CanRead))
	assert.False(t, CanWrite.Has(CanWrite|CanRead))
}

func TestPipe(t *testing.T) {
	leaf := testutil.NewWriteMock[int](testutil.Immediate)
	pre := testutil.NewActionMock(testutil.Immediate)

	w := Pipe[Writer[int]](leaf,
		func(w Writer[int]) Writer[int] { return TransformWriter(w, inc) },
		func(w Writer[int]) Writer[int] { return FilterWriter(w, notFive) },
		func(w Writer[int]) Writer[int] { return ActionWriter(w, pre.Action()) },
	)

	for _, v := range []int{4, 5, 6} {
		require.NoError(t, w.Write(v).Submit())
	}
	// Stages apply left to right: the filter sees values before the
	// transform does.
	assert.Equal(t, []int{5, 7}, leaf.Written)
	assert.Equal(t, 3, pre.Runs)
}

func TestThen(t *testing.T) {
	leaf := testutil.NewWriteMock[string](testutil.Immediate)
	stage := Then(
		func(w Writer[string]) Writer[int] {
			return TransformWriter(w, func(v int) string { return string(rune('a' + v)) })
		},
		func(w Writer[int]) Writer[int] { return FilterWriter(w, func(v int) bool { return v%2 == 0 }) },
	)

	w := stage(leaf)
	require.NoError(t, w.WriteRange(slices.Values([]int{0, 1, 2, 3, 4})).Submit())
	assert.Equal(t, []string{"a", "c", "e"}, leaf.Written)
}

// TestNestedComposition builds random stacks of write combinators and
// checks the leaf against a direct model of the same stack.
func TestNestedComposition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		leaf := testutil.NewWriteMock[int](rapid.SampledFrom(testutil.Modes).Draw(t, "mode"))
		pre := testutil.NewActionMock(testutil.Immediate)

		type layer struct {
			wrap  func(Writer[int]) Writer[int]
			model func(v int) (int, bool)
		}
		layers := []layer{
			{func(w Writer[int]) Writer[int] { return TransformWriter(w, inc) }, func(v int) (int, bool) { return v + 1, true }},
			{func(w Writer[int]) Writer[int] { return FilterWriter(w, notFive) }, func(v int) (int, bool) { return v, v != 5 }},
			{func(w Writer[int]) Writer[int] { return ActionWriter(w, pre.Action()) }, func(v int) (int, bool) { return v, true }},
		}

		picks := rapid.SliceOfN(rapid.IntRange(0, len(layers)-1), 0, 6).Draw(t, "layers")
		values := rapid.SliceOf(rapid.IntRange(0, 8)).Draw(t, "values")

		var w Writer[int] = leaf
		for _, i := range picks {
			w = layers[i].wrap(w)
		}

		var want []int
		for _, v := range values {
			// The outermost layer sees the value first.
			x, ok := v, true
			for j := len(picks) - 1; j >= 0 && ok; j-- {
				x, ok = layers[picks[j]].model(x)
			}
			if ok {
				want = append(want, x)
			}

			var p testutil.Probe
			w.Write(v).SubmitAsync(p.Token())
			testutil.Settle(leaf)
			if p.Dones != 1 {
				t.Fatalf("write %d: probe %+v", v, p)
			}
		}

		if !slices.Equal(leaf.Written, want) {
			t.Fatalf("leaf %v, want %v", leaf.Written, want)
		}
	})
}
