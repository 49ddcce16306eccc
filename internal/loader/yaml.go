package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/seq"
)

// YAML tags for values plain YAML cannot express.
const (
	tagHole      = "!hole"
	tagUndefined = "!undefined"
	tagRef       = "!ref"
)

func parseYAML(data []byte, refs *seq.RefTable) (*seq.Store, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("yaml: expected one document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("yaml: top-level value must be a sequence (line %d)", root.Line)
	}
	slot, err := FromYAML(root, refs)
	if err != nil {
		return nil, err
	}
	v, _ := slot.Value()
	return v.(*seq.Store), nil
}

// FromYAML converts a YAML node into a slot. Sequences become stores,
// scalars follow their resolved YAML tag, and mappings must be canonical
// JSON marker objects. The harness uses it for scenario literals.
func FromYAML(n *yaml.Node, refs *seq.RefTable) (seq.Slot, error) {
	if refs == nil {
		refs = seq.NewRefTable()
	}
	switch n.Kind {
	case yaml.AliasNode:
		return FromYAML(n.Alias, refs)
	case yaml.SequenceNode:
		b := seq.NewBuilder(len(n.Content))
		for i, child := range n.Content {
			slot, err := FromYAML(child, refs)
			if err != nil {
				return seq.Slot{}, fmt.Errorf("[%d]: %w", i, err)
			}
			b.AppendSlot(slot)
		}
		return seq.Present(b.Build()), nil
	case yaml.MappingNode:
		var raw map[string]any
		if err := n.Decode(&raw); err != nil {
			return seq.Slot{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		slot, err := seq.FromJSON(raw, refs)
		if err != nil {
			return seq.Slot{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return slot, nil
	case yaml.ScalarNode:
		return scalar(n, refs)
	}
	return seq.Slot{}, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

func scalar(n *yaml.Node, refs *seq.RefTable) (seq.Slot, error) {
	switch n.ShortTag() {
	case tagHole:
		return seq.Hole(), nil
	case tagUndefined:
		return seq.Present(seq.Undefined{}), nil
	case tagRef:
		if n.Value == "" {
			return seq.Slot{}, fmt.Errorf("line %d: !ref needs an id", n.Line)
		}
		return seq.Present(refs.Resolve(n.Value)), nil
	case "!!null":
		return seq.Present(seq.Null{}), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return seq.Slot{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return seq.Present(seq.Bool(b)), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return seq.Slot{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return seq.Present(seq.Int(i)), nil
	case "!!float":
		f, err := parseFloat(n.Value)
		if err != nil {
			return seq.Slot{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return seq.Present(seq.Float(f)), nil
	case "!!str":
		return seq.Present(seq.Text(n.Value)), nil
	}
	return seq.Slot{}, fmt.Errorf("line %d: unsupported tag %s", n.Line, n.ShortTag())
}

func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case ".nan":
		return math.NaN(), nil
	case ".inf", "+.inf":
		return math.Inf(1), nil
	case "-.inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
}
