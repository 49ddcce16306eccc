package splice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/seq"
)

func ints(n int) *seq.Store {
	b := seq.NewBuilder(n)
	for i := 0; i < n; i++ {
		b.Append(seq.Int(i))
	}
	return b.Build()
}

func TestSpliceLength(t *testing.T) {
	s := ints(1024)
	items := make([]seq.Value, 32)
	for i := range items {
		items[i] = seq.Text("x")
	}

	out, err := Splice(s, 496, 32, items...)
	require.NoError(t, err)
	assert.Equal(t, 1024, out.Len())

	v, _ := out.Get(495)
	assert.Equal(t, seq.Int(495), v)
	v, _ = out.Get(496)
	assert.Equal(t, seq.Text("x"), v)
	v, _ = out.Get(528)
	assert.Equal(t, seq.Int(528), v)
}

func TestSpliceTable(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		start  int
		delete int
		items  []seq.Value
		want   string
	}{
		{"insert at front", []any{1, 2}, 0, 0, []seq.Value{seq.Int(0)}, "[0,1,2]"},
		{"append", []any{1, 2}, 2, 0, []seq.Value{seq.Int(3)}, "[1,2,3]"},
		{"delete only", []any{1, 2, 3, 4}, 1, 2, nil, "[1,4]"},
		{"replace growing", []any{1, 2, 3}, 1, 1, []seq.Value{seq.Int(7), seq.Int(8), seq.Int(9)}, "[1,7,8,9,3]"},
		{"start clamped high", []any{1, 2}, 10, 5, []seq.Value{seq.Int(3)}, "[1,2,3]"},
		{"start clamped low", []any{1, 2}, -5, 1, nil, "[2]"},
		{"delete clamped", []any{1, 2, 3}, 1, 100, nil, "[1]"},
		{"negative delete", []any{1, 2, 3}, 1, -1, nil, "[1,2,3]"},
		{"empty input", []any{}, 0, 0, nil, "[]"},
		{"holes preserved", []any{seq.HoleMarker, 1, seq.HoleMarker, 2}, 1, 1, nil, `[{"$hole":true},{"$hole":true},2]`},
		{"trailing hole tail", []any{1, seq.HoleMarker, seq.HoleMarker}, 1, 0, []seq.Value{seq.Int(5)}, `[1,5,{"$hole":true},{"$hole":true}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seq.Of(tt.input).(*seq.Store)
			out, err := Splice(s, tt.start, tt.delete, tt.items...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(seq.MustMarshalCanonical(out)))
		})
	}
}

func TestSpliceLengthFormula(t *testing.T) {
	s := ints(10)
	for start := -2; start <= 12; start++ {
		for del := -1; del <= 12; del++ {
			out, err := Splice(s, start, del, seq.Int(0), seq.Int(0))
			require.NoError(t, err)

			cs := min(max(start, 0), 10)
			cd := min(max(del, 0), 10-cs)
			assert.Equal(t, 10-cd+2, out.Len(), "start=%d del=%d", start, del)
		}
	}
}

func TestSpliceKeepsIdentityAndInput(t *testing.T) {
	inner := seq.New(seq.Int(1))
	s := seq.New(inner, seq.Int(2))
	before := string(seq.MustMarshalCanonical(s))

	out, err := Splice(s, 1, 1)
	require.NoError(t, err)

	v, _ := out.Get(0)
	assert.Same(t, inner, v)
	assert.Equal(t, before, string(seq.MustMarshalCanonical(s)))
	assert.NotEqual(t, s.ID(), out.ID())
}

func TestSpliceSparseTailStaysImplicit(t *testing.T) {
	s := seq.Sparse(1 << 40)

	out, err := Splice(s, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1<<40-1, out.Len())
	assert.Equal(t, 0, out.Extent())
}

func TestSpliceLimits(t *testing.T) {
	e := New(WithLimits(seq.Limits{MaxLength: 3}))

	_, err := e.Splice(ints(3), 0, 0, seq.Int(9))
	assert.True(t, seq.IsResourceExhausted(err))

	out, err := e.Splice(ints(3), 0, 1, seq.Int(9))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
}

func TestSpliceNilStore(t *testing.T) {
	_, err := Splice(nil, 0, 0)
	assert.True(t, seq.IsInvalidArgument(err))
}

func TestRelativeIndex(t *testing.T) {
	tests := []struct {
		i, length, want int
	}{
		{0, 5, 0},
		{3, 5, 3},
		{9, 5, 5},
		{-1, 5, 4},
		{-5, 5, 0},
		{-9, 5, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeIndex(tt.i, tt.length), "RelativeIndex(%d, %d)", tt.i, tt.length)
	}
}
