package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[1, 2, 2, 3]`)
	b := writeFile(t, dir, "b.json", `[3, 4]`)
	small := writeFile(t, dir, "small.json", `[2, 1]`)
	nested := writeFile(t, dir, "nested.json", `[[1], [1], "\u00e9"]`)
	decomposed := writeFile(t, dir, "decomposed.json", `["e\u0301"]`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"union", []string{"union", a, b}, `[1,2,3,4]`},
		{"intersection", []string{"intersection", a, b}, `[3]`},
		{"difference", []string{"difference", a, b}, `[1,2]`},
		{"symmetric difference", []string{"symmetric-difference", a, b}, `[1,2,4]`},
		{"subset", []string{"subset", small, a}, `true`},
		{"superset", []string{"superset", small, a}, `false`},
		{"disjoint", []string{"disjoint", small, b}, `true`},
		{"same value zero keeps distinct stores", []string{"union", nested, nested}, `[[1],[1],"é",[1],[1]]`},
		{"structural", []string{"union", nested, nested, "--equality", "structural"}, `[[1],"é"]`},
		{"normalized", []string{"intersection", nested, decomposed, "--equality", "structural+NFC"}, `["é"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"set"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestSetCommand_JSONRelation(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[1]`)
	b := writeFile(t, dir, "b.json", `[1, 2]`)

	out, _, err := execute(t, "", "set", "subset", a, b, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "isSubsetOf", resp.Data.Op)
	assert.Equal(t, "true", string(resp.Data.Output))
	assert.Nil(t, resp.Data.Length)
}

func TestSetCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[1, 2]`)
	b := writeFile(t, dir, "b.json", `[3]`)

	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"unknown op", []string{"merge", a, b}, ExitCommandError, ErrCodeInvalidArgument},
		{"unknown equality", []string{"union", a, b, "--equality", "loose"}, ExitCommandError, ErrCodeInvalidArgument},
		{"equality mismatch", []string{"union", a, b, "--other-equality", "structural"}, ExitFailure, ErrCodeCapabilityMismatch},
		{"max length", []string{"union", a, b, "--max-length", "2"}, ExitFailure, ErrCodeResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"set"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}
