package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden traces for the scenarios under testdata/scenarios. To regenerate:
//
//	go test ./internal/harness -run TestGoldenScenarios -update
func TestGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestGoldenScenarios_Pass(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		result, err := Run(t.Context(), scenario)
		require.NoError(t, err, path)
		assert.True(t, result.Pass, "%s: %v", path, result.Errors)
	}
}

func TestMarshalTrace_IsStable(t *testing.T) {
	scenario := mustParse(t, `
name: stable
description: d
inputs:
  a: [[1], "<&>"]
steps:
  - op: flat
    input: a
`)

	first, err := Run(t.Context(), scenario)
	require.NoError(t, err)
	second, err := Run(t.Context(), scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t,
		"{\"scenario\":\"stable\",\"pass\":true}\n"+
			"{\"seq\":1,\"op\":\"flat\",\"input\":\"a\",\"args\":[1],\"output\":[1,\"<&>\"]}\n",
		string(a))
}
