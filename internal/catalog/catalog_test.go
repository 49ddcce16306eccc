package catalog

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/seq"
)

func setupTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path, WithNoSync(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_StoreRoundTrip(t *testing.T) {
	c := setupTestCatalog(t)
	in := seq.Of([]any{1, seq.HoleMarker, []any{2, 3}}).(*seq.Store)

	require.NoError(t, c.PutStore("nested", in))

	out, err := c.Store("nested", nil)
	require.NoError(t, err)
	assert.True(t, seq.Equal(in, out))
	assert.True(t, out.IsHole(1))
	assert.NotSame(t, in, out)
}

func TestCatalog_PutReplaces(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.PutStore("x", seq.New(seq.Int(1))))
	require.NoError(t, c.PutStore("x", seq.New(seq.Int(2))))

	out, err := c.Store("x", nil)
	require.NoError(t, err)
	assert.Equal(t, "[2]", string(seq.MustMarshalCanonical(out)))
}

func TestCatalog_SetRoundTrip(t *testing.T) {
	c := setupTestCatalog(t)
	in := keyset.Of(keyset.Structural, seq.Int(3), seq.Of([]any{1}), seq.Text("a"))

	require.NoError(t, c.PutSet("keys", in))

	out, err := c.Set("keys", nil)
	require.NoError(t, err)
	assert.Equal(t, "structural", out.Equality().Name())
	assert.Equal(t, 3, out.Size())
	assert.True(t, out.Has(seq.Of([]any{1})))
}

func TestCatalog_NamesAndDelete(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.PutStore("b", seq.New()))
	require.NoError(t, c.PutStore("a", seq.New()))
	require.NoError(t, c.PutSet("s", keyset.New(nil)))

	names, err := c.Names(KindStore)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	names, err = c.Names(KindSet)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, names)

	require.NoError(t, c.Delete(KindStore, "a"))
	assert.ErrorIs(t, c.Delete(KindStore, "a"), ErrNotFound)

	_, err = c.Store("a", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Names(Kind("bogus"))
	assert.Error(t, err)
}

func TestCatalog_KindsAreSeparate(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.PutStore("same", seq.New(seq.Int(1))))

	_, err := c.Set("same", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_InvalidPut(t *testing.T) {
	c := setupTestCatalog(t)

	assert.True(t, seq.IsInvalidArgument(c.PutStore("x", nil)))
	assert.True(t, seq.IsInvalidArgument(c.PutStore("", seq.New())))
	assert.True(t, seq.IsInvalidArgument(c.PutSet("x", nil)))
}

func TestCatalog_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	quiet := WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	c, err := Open(path, quiet)
	require.NoError(t, err)
	require.NoError(t, c.PutStore("kept", seq.Sparse(5)))
	require.NoError(t, c.Close())

	c, err = Open(path, quiet)
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Store("kept", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())
	assert.Equal(t, path, c.Path())
}
