package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterCommand(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.yaml", "[1, !hole, 2, 3, 4, 5]")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"collect skips holes", nil, `[1,2,3,4,5]`},
		{"filter", []string{"--filter", "(x) => x % 2"}, `[1,3,5]`},
		{"map sees dense index", []string{"--map", "(x, i) => 'n' + i"}, `["n0","n1","n2","n3","n4"]`},
		{"drop and take", []string{"--drop", "1", "--take", "2"}, `[2,3]`},
		{"take zero", []string{"--take", "0"}, `[]`},
		{"chain order", []string{"--take", "2", "--map", "(x) => 's' + x", "--filter", "(x) => x > 1"}, `["s2","s3"]`},
		{"some", []string{"--some", "(x) => x > 4"}, `true`},
		{"every", []string{"--every", "(x) => x > 1"}, `false`},
		{"find", []string{"--drop", "1", "--find", "(x) => x > 2"}, `3`},
		{"find nothing", []string{"--find", "(x) => x > 9"}, `{"$undefined":true}`},
		{"async", []string{"--map", "(x) => 'a' + x", "--take", "3", "--async"}, `["a1","a2","a3"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"iter", in}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestIterCommand_Errors(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.json", `[1, 2, 3]`)

	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"callback throws", []string{"--map", "() => { throw new Error('boom') }"}, ExitFailure, ErrCodeUpstream},
		{"negative take", []string{"--take", "-1"}, ExitFailure, ErrCodeInvalidArgument},
		{"max length", []string{"--max-length", "2"}, ExitFailure, ErrCodeResourceExhausted},
		{"max length async", []string{"--async", "--max-length", "2"}, ExitFailure, ErrCodeResourceExhausted},
		{"not a function", []string{"--filter", "42"}, ExitCommandError, ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append([]string{"iter", in}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}
