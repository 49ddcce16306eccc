package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/seq"
)

const want = `[1,{"$hole":true},[2,3.5],"x",null,true,{"$undefined":true}]`

func TestParse_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		src    string
	}{
		{
			name:   "json",
			format: FormatJSON,
			src:    `[1, {"$hole": true}, [2, 3.5], "x", null, true, {"$undefined": true}]`,
		},
		{
			name:   "yaml tags",
			format: FormatYAML,
			src: `
- 1
- !hole
- [2, 3.5]
- x
- null
- true
- !undefined
`,
		},
		{
			name:   "yaml markers",
			format: FormatYAML,
			src:    `[1, {$hole: true}, [2, 3.5], "x", ~, true, {$undefined: true}]`,
		},
		{
			name:   "cue",
			format: FormatCUE,
			src:    `[1, {"$hole": true}, [2, 1.5 + 2], "x", null, true, {"$undefined": true}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.format, []byte(tt.src), nil)
			require.NoError(t, err)
			assert.Equal(t, want, string(seq.MustMarshalCanonical(s)))
			assert.True(t, s.IsHole(1))
		})
	}
}

func TestParseYAML_Scalars(t *testing.T) {
	s, err := Parse(FormatYAML, []byte(`[0x10, 1.0, .nan, -.inf, "007", !!str 12]`), nil)
	require.NoError(t, err)
	assert.Equal(t,
		`[16,1.0,{"$float":"NaN"},{"$float":"-Infinity"},"007","12"]`,
		string(seq.MustMarshalCanonical(s)))
}

func TestParseYAML_RefsShareTable(t *testing.T) {
	r := seq.NewRef("host", nil)
	refs := seq.NewRefTable(r)

	s, err := Parse(FormatYAML, []byte("- !ref "+r.ID+"\n- !ref other\n- !ref other\n"), refs)
	require.NoError(t, err)

	v0, _ := s.Get(0)
	v1, _ := s.Get(1)
	v2, _ := s.Get(2)
	assert.Same(t, r, v0)
	assert.Same(t, v1, v2)
}

func TestParseYAML_Anchors(t *testing.T) {
	s, err := Parse(FormatYAML, []byte("- &a [1, 2]\n- *a\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "[[1,2],[1,2]]", string(seq.MustMarshalCanonical(s)))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		src    string
	}{
		{"json object", FormatJSON, `{"a": 1}`},
		{"json scalar", FormatJSON, `1`},
		{"yaml mapping", FormatYAML, `a: 1`},
		{"yaml plain object", FormatYAML, `[{a: 1}]`},
		{"yaml empty ref", FormatYAML, `[!ref ""]`},
		{"yaml unknown tag", FormatYAML, `[!weird 1]`},
		{"cue struct", FormatCUE, `a: 1`},
		{"cue incomplete", FormatCUE, `[int]`},
		{"cue conflict", FormatCUE, `[1 & 2]`},
		{"unknown format", Format("toml"), `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.format, []byte(tt.src), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.json": `[1, 2]`,
		"a.yml":  "[1, 2]",
		"a.YAML": "- 1\n- 2\n",
		"a.cue":  `[1, 1 + 1]`,
	}

	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

		s, err := Load(path, nil)
		require.NoError(t, err, name)
		assert.Equal(t, "[1,2]", string(seq.MustMarshalCanonical(s)), name)
	}

	_, err := Load(filepath.Join(dir, "a.txt"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
