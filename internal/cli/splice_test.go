package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpliceCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.json", `[0, 1, 2, 3]`)
	extra := writeFile(t, dir, "extra.yaml", "- a\n- b\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"delete range", []string{in, "--start", "1", "--delete", "2"}, `[0,3]`},
		{"delete rest by default", []string{in, "--start", "2"}, `[0,1]`},
		{"negative start", []string{in, "--start", "-1", "--insert", extra}, `[0,1,2,"a","b"]`},
		{"insert only", []string{in, "--start", "1", "--delete", "0", "--insert", extra}, `[0,"a","b",1,2,3]`},
		{"start past end", []string{in, "--start", "9", "--insert", extra}, `[0,1,2,3,"a","b"]`},
		{"delete clamps", []string{in, "--start", "3", "--delete", "99"}, `[0,1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"splice"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestSpliceCommand_KeepsHolesOutsideRange(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.yaml", "- !hole\n- 1\n- !hole\n")
	out, _, err := execute(t, "", "splice", in, "--start", "1", "--delete", "1")
	require.NoError(t, err)
	assert.Equal(t, `[{"$hole":true},{"$hole":true}]`+"\n", out)
}

func TestSpliceCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.json", `[0, 1, 2]`)
	holes := writeFile(t, dir, "holes.yaml", "- !hole\n")

	_, _, err := execute(t, "", "splice", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"start" not set`)

	out, _, err := execute(t, "", "splice", in, "--start", "0", "--insert", holes)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "must not be holes")

	out, _, err = execute(t, "", "splice", in, "--start", "0", "--delete", "0", "--insert", in, "--max-length", "4")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeResourceExhausted+"]")
}
