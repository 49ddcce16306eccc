package flatten

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/seq"
)

// canonical renders a store for comparison in failure messages.
func canonical(t *testing.T, v seq.Value) string {
	t.Helper()
	return string(seq.MustMarshalCanonical(v))
}

func TestFlattenDepthOne(t *testing.T) {
	in := seq.Of([]any{1, []any{2, 3}, 4, []any{5}, 6, []any{7, 8, 9}, 10}).(*seq.Store)

	out, err := Flatten(in, 1)
	require.NoError(t, err)

	assert.Equal(t, 10, out.Len())
	assert.Equal(t, "[1,2,3,4,5,6,7,8,9,10]", canonical(t, out))
}

func TestFlattenTable(t *testing.T) {
	tests := []struct {
		name  string
		input any
		depth int
		want  string
	}{
		{"empty", []any{}, 1, "[]"},
		{"empty unbounded", []any{}, Unbounded, "[]"},
		{"depth zero keeps holes", []any{0, 1, seq.HoleMarker, 3}, 0, `[0,1,{"$hole":true},3]`},
		{"depth one skips holes", []any{0, 1, seq.HoleMarker, 3}, 1, "[0,1,3]"},
		{"nested holes skipped", []any{[]any{seq.HoleMarker, 1}, seq.HoleMarker}, 1, "[1]"},
		{"exhausted depth keeps store", []any{1, []any{2, []any{3, []any{4}}}}, 1, "[1,2,[3,[4]]]"},
		{"depth two", []any{1, []any{2, []any{3, []any{4}}}}, 2, "[1,2,3,[4]]"},
		{"unbounded", []any{1, []any{2, []any{3, []any{4}}}}, Unbounded, "[1,2,3,4]"},
		{"depth beyond nesting", []any{[]any{[]any{1}}}, 50, "[1]"},
		{"null survives", []any{nil, []any{nil}}, 1, "[null,null]"},
		{"empty nested vanish", []any{[]any{}, []any{[]any{}}, 1}, 1, "[[],1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := seq.Of(tt.input).(*seq.Store)
			out, err := Flatten(in, tt.depth)
			require.NoError(t, err)
			assert.Equal(t, tt.want, canonical(t, out))
		})
	}
}

func TestFlattenIdempotentAtBoundary(t *testing.T) {
	s := seq.Of([]any{1, []any{2, 3}, seq.HoleMarker, []any{4}}).(*seq.Store)

	for _, d := range []int{0, 1, 2, 5} {
		once, err := Flatten(s, 1)
		require.NoError(t, err)
		twice, err := Flatten(once, d)
		require.NoError(t, err)
		direct, err := Flatten(s, d+1)
		require.NoError(t, err)

		if diff := cmp.Diff(canonical(t, direct), canonical(t, twice)); diff != "" {
			t.Errorf("depth %d mismatch (-direct +twice):\n%s", d, diff)
		}
	}
}

func TestFlattenPreservesIdentity(t *testing.T) {
	inner := seq.New(seq.Int(1))
	ref := seq.NewRef("host", struct{}{})
	in := seq.New(seq.New(inner, ref))

	out, err := Flatten(in, 1)
	require.NoError(t, err)

	a, _ := out.Get(0)
	b, _ := out.Get(1)
	assert.Same(t, inner, a)
	assert.Same(t, ref, b)
}

func TestFlattenDoesNotMutateInput(t *testing.T) {
	in := seq.Of([]any{1, []any{2}, seq.HoleMarker}).(*seq.Store)
	before := canonical(t, in)

	_, err := Flatten(in, Unbounded)
	require.NoError(t, err)
	assert.Equal(t, before, canonical(t, in))
}

func TestFlattenSparseTailIsCheap(t *testing.T) {
	b := seq.NewBuilder(0)
	b.Append(seq.Int(1))
	b.SetLength(1 << 40)
	in := seq.New(b.Build(), seq.Int(2))

	out, err := Flatten(in, 1)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", canonical(t, out))
}

func TestFlattenInvalidArguments(t *testing.T) {
	_, err := Flatten(seq.New(), -2)
	assert.True(t, seq.IsInvalidArgument(err))

	_, err = Flatten(nil, 1)
	assert.True(t, seq.IsInvalidArgument(err))
}

func TestFlattenLimits(t *testing.T) {
	deep := seq.Of([]any{[]any{[]any{[]any{1}}}}).(*seq.Store)
	wide := seq.Of([]any{[]any{1, 2, 3}, []any{4, 5}}).(*seq.Store)

	tests := []struct {
		name   string
		limits seq.Limits
		input  *seq.Store
		depth  int
		ok     bool
	}{
		{"length within", seq.Limits{MaxLength: 5}, wide, 1, true},
		{"length exceeded", seq.Limits{MaxLength: 4}, wide, 1, false},
		{"raw copy length exceeded", seq.Limits{MaxLength: 1}, wide, 0, false},
		{"depth within", seq.Limits{MaxDepth: 3}, deep, Unbounded, true},
		{"depth exceeded", seq.Limits{MaxDepth: 2}, deep, Unbounded, false},
		{"depth bounded by argument", seq.Limits{MaxDepth: 2}, deep, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithLimits(tt.limits))
			out, err := f.Flatten(tt.input, tt.depth)
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, out)
				return
			}
			assert.True(t, seq.IsResourceExhausted(err), "got %v", err)
			assert.Nil(t, out)
		})
	}
}

// hostArray is an array-like host with optional failure injection.
type hostArray struct {
	items   []seq.Value
	holes   map[int]bool
	failAt  int
	failErr error
	reads   int
}

func (h *hostArray) Length() (int, error) { return len(h.items), nil }

func (h *hostArray) Index(i int) (seq.Value, bool, error) {
	h.reads++
	if h.failErr != nil && i == h.failAt {
		return nil, false, h.failErr
	}
	if h.holes[i] {
		return nil, false, nil
	}
	return h.items[i], true, nil
}

func TestFlattenArrayLikeIsOptIn(t *testing.T) {
	host := &hostArray{items: []seq.Value{seq.Int(2), seq.Int(3)}}
	ref := seq.NewRef("proxy", host)
	in := seq.New(seq.Int(1), ref)

	out, err := Flatten(in, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len(), "refs are opaque by default")
	assert.Zero(t, host.reads)

	out, err = New(WithArrayLike()).Flatten(in, 1)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", canonical(t, out))
}

func TestFlattenArrayLikeHoles(t *testing.T) {
	host := &hostArray{items: []seq.Value{seq.Int(1), nil, seq.Int(3)}, holes: map[int]bool{1: true}}
	in := seq.New(seq.NewRef("proxy", host))

	out, err := New(WithArrayLike()).Flatten(in, 1)
	require.NoError(t, err)
	assert.Equal(t, "[1,3]", canonical(t, out))
}

func TestFlattenHostErrorPassesThrough(t *testing.T) {
	boom := errors.New("proxy trap failed")
	host := &hostArray{items: []seq.Value{seq.Int(1), seq.Int(2)}, failAt: 1, failErr: boom}
	in := seq.New(seq.NewRef("proxy", host))

	out, err := New(WithArrayLike()).Flatten(in, 1)
	assert.Same(t, boom, err)
	assert.Nil(t, out)
}

func TestFlattenCycleIsResourceExhausted(t *testing.T) {
	host := &hostArray{}
	ref := seq.NewRef("self", host)
	host.items = []seq.Value{seq.Int(1), ref}

	_, err := New(WithArrayLike()).Flatten(seq.New(ref), Unbounded)
	require.Error(t, err)
	assert.True(t, seq.IsResourceExhausted(err))
}

func TestFlattenRepeatedChildIsNotACycle(t *testing.T) {
	child := seq.New(seq.Int(1))
	in := seq.New(child, child, seq.New(child))

	out, err := Flatten(in, Unbounded)
	require.NoError(t, err)
	assert.Equal(t, "[1,1,1]", canonical(t, out))
}

func TestFlattenCustomRecognizer(t *testing.T) {
	// Treat text as a container of its characters.
	chars := func(v seq.Value) (seq.ArrayLike, bool) {
		if s, ok := v.(seq.Text); ok {
			b := seq.NewBuilder(len(s))
			for _, r := range string(s) {
				b.Append(seq.Text(string(r)))
			}
			return b.Build(), true
		}
		return Stores(v)
	}

	out, err := New(WithRecognizer(chars)).Flatten(seq.Of([]any{"ab", []any{"c"}}).(*seq.Store), 1)
	require.NoError(t, err)
	assert.Equal(t, `["a","b","c"]`, canonical(t, out))
}

func TestFlatMap(t *testing.T) {
	in := seq.Of([]any{1, seq.HoleMarker, 3}).(*seq.Store)

	var positions []int
	out, err := FlatMap(in, func(v seq.Value, i int) (seq.Value, error) {
		positions = append(positions, i)
		n := v.(seq.Int)
		return seq.New(n, seq.New(n*10)), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, positions, "holes are not visited")
	assert.Equal(t, "[1,[10],3,[30]]", canonical(t, out))
}

func TestFlatMapScalarResults(t *testing.T) {
	in := seq.Of([]any{"a", "b"}).(*seq.Store)
	out, err := FlatMap(in, func(v seq.Value, _ int) (seq.Value, error) {
		return v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, canonical(t, out))
}

func TestFlatMapCallbackErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	out, err := FlatMap(seq.New(seq.Int(1), seq.Int(2), seq.Int(3)), func(seq.Value, int) (seq.Value, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return seq.Int(0), nil
	})

	assert.Same(t, boom, err)
	assert.Nil(t, out)
	assert.Equal(t, 2, calls)
}

func TestFlatMapInvalidArguments(t *testing.T) {
	_, err := FlatMap(seq.New(), nil)
	assert.True(t, seq.IsInvalidArgument(err))

	_, err = FlatMap(nil, func(v seq.Value, _ int) (seq.Value, error) { return v, nil })
	assert.True(t, seq.IsInvalidArgument(err))
}
