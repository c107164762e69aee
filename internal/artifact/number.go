package artifact

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const nullTag = "!!null"

// number decodes a numeric scalar from a JSON or YAML artifact. Documents
// written by Python's json module may contain bare NaN/Infinity tokens, which
// YAML reads as strings, so those are parsed here as well.
type number struct {
	v    float64
	null bool
}

func (n *number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number, got %s", node.Line, kindName(node.Kind))
	}
	if node.ShortTag() == nullTag {
		*n = number{null: true}
		return nil
	}
	var f float64
	if err := node.Decode(&f); err == nil {
		*n = number{v: f}
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	*n = number{v: f}
	return nil
}

// float returns NaN for null. A nil *number is what the decoder leaves
// behind for an explicit null.
func (n *number) float() float64 {
	if n == nil || n.null {
		return math.NaN()
	}
	return n.v
}

func (n *number) integer(key string) (int, error) {
	f := n.float()
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer, got %v", key, f)
	}
	return int(f), nil
}

// clipPair is one clip_bounds entry: [low, high] where either side may be
// null, NaN or missing.
type clipPair struct {
	low, high number
	absent    bool
}

func (p *clipPair) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == nullTag {
			*p = clipPair{absent: true}
			return nil
		}
		return fmt.Errorf("line %d: clip bound must be [low, high], got %q", node.Line, node.Value)
	case yaml.SequenceNode:
	default:
		return fmt.Errorf("line %d: clip bound must be [low, high], got %s", node.Line, kindName(node.Kind))
	}
	if len(node.Content) > 2 {
		return fmt.Errorf("line %d: clip bound has %d values, want 2", node.Line, len(node.Content))
	}
	out := clipPair{low: number{null: true}, high: number{null: true}}
	sides := []*number{&out.low, &out.high}
	for i, item := range node.Content {
		// The decoder skips unmarshalers for null nodes, so nulls stay
		// at the preset unbounded value.
		if item.ShortTag() == nullTag {
			continue
		}
		if err := item.Decode(sides[i]); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
