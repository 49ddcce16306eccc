package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatCommand(t *testing.T) {
	dir := t.TempDir()
	nested := writeFile(t, dir, "nested.json", `[1, [2, [3, [4]]]]`)
	sparse := writeFile(t, dir, "sparse.yaml", "- 1\n- !hole\n- [2, !hole, 3]\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default depth", []string{nested}, `[1,2,[3,[4]]]`},
		{"depth 2", []string{nested, "--depth", "2"}, `[1,2,3,[4]]`},
		{"unbounded", []string{nested, "--unbounded"}, `[1,2,3,4]`},
		{"holes skipped", []string{sparse}, `[1,2,3]`},
		{"depth zero keeps holes", []string{sparse, "--depth", "0"}, `[1,{"$hole":true},[2,{"$hole":true},3]]`},
		{"flat map", []string{nested, "--flat-map", "(x, i) => [i]"}, `[0,1]`},
		{"js input", []string{"js:[[1], , [2]]"}, `[1,2]`},
		{"array-like", []string{"js:[0, {length: 2, 0: 'a', 1: 'b'}]", "--array-like"}, `[0,"a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"flat"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestFlatCommand_Stdin(t *testing.T) {
	out, _, err := execute(t, `[[1], [2]]`, "flat", "-")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]\n", out)
}

func TestFlatCommand_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "in.json", `[[1, 2], 3]`)
	out, _, err := execute(t, "", "flat", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "flat", resp.Data.Op)
	assert.JSONEq(t, `[1,2,3]`, string(resp.Data.Output))
	require.NotNil(t, resp.Data.Length)
	assert.Equal(t, 3, *resp.Data.Length)
	assert.Empty(t, resp.Data.EntryID)
}

func TestFlatCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	wide := writeFile(t, dir, "wide.json", `[[1, 2], [3]]`)
	deep := writeFile(t, dir, "deep.json", `[[[[1]]]]`)

	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"max length", []string{wide, "--max-length", "2"}, ExitFailure, ErrCodeResourceExhausted},
		{"max depth", []string{deep, "--unbounded", "--max-depth", "2"}, ExitFailure, ErrCodeResourceExhausted},
		{"callback throws", []string{wide, "--flat-map", "() => { throw new Error('boom') }"}, ExitFailure, ErrCodeUpstream},
		{"callback does not compile", []string{wide, "--flat-map", "(("}, ExitCommandError, ErrCodeLoadFailed},
		{"missing file", []string{dir + "/nope.json"}, ExitCommandError, ErrCodeLoadFailed},
		{"unknown extension", []string{writeFile(t, dir, "in.txt", "[]")}, ExitCommandError, ErrCodeLoadFailed},
		{"catalog without flag", []string{"@saved"}, ExitCommandError, ErrCodeCatalog},
		{"js non-array", []string{"js:42"}, ExitCommandError, ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"flat"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestFlatCommand_ExclusiveFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "in.json", `[1]`)
	_, _, err := execute(t, "", "flat", path, "--depth", "2", "--unbounded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}
