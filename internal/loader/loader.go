// Package loader reads store literals from JSON, YAML and CUE files.
//
// All three formats share the canonical JSON vocabulary: arrays are stores,
// and the single-key objects {"$hole": true}, {"$undefined": true},
// {"$float": "NaN"} and {"$ref": "<id>"} stand for the values JSON lacks.
// YAML additionally accepts the tags !hole, !undefined and !ref <id>.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/strata/internal/seq"
)

// Format is a literal file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// ErrUnknownFormat is returned for an extension or format name that has no
// parser.
var ErrUnknownFormat = errors.New("unknown literal format")

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads the file at path and parses it as a store literal. A path of
// "-" reads JSON from stdin.
func Load(path string, refs *seq.RefTable) (*seq.Store, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return Parse(FormatJSON, data, refs)
	}

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(format, data, refs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a store literal. The top-level value must be a list.
func Parse(format Format, data []byte, refs *seq.RefTable) (*seq.Store, error) {
	if refs == nil {
		refs = seq.NewRefTable()
	}
	switch format {
	case FormatJSON:
		return seq.UnmarshalStore(data, refs)
	case FormatYAML:
		return parseYAML(data, refs)
	case FormatCUE:
		return parseCUE(data, refs)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// parseCUE evaluates a CUE file whose emitted value is a list. The value
// must be concrete; it is exported as JSON and decoded like a JSON literal.
func parseCUE(data []byte, refs *seq.RefTable) (*seq.Store, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile cue: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("cue value is not concrete: %w", err)
	}
	if k := v.Kind(); k != cue.ListKind {
		return nil, fmt.Errorf("cue value must be a list, got %s", k)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export cue: %w", err)
	}
	return seq.UnmarshalStore(raw, refs)
}
