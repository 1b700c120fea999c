package schema

import (
	"fmt"
	"strings"
)

// SchemaError reports the first structural mismatch found between a parsed
// value and a schema. Path is a dotted key path ("" for the root).
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema mismatch at root: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch at %s: %s", e.Path, e.Reason)
}

// Validate checks that value, as decoded by encoding/json, has every key
// path of node and that every sequence on those paths is non-empty.
// Leaf values and the contents of sequence elements are not inspected;
// extra keys are allowed.
func Validate(value any, node *Node) error {
	return validate(value, node, nil)
}

func validate(value any, node *Node, path []string) error {
	switch node.Kind {
	case KindLeaf:
		return nil

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return mismatch(path, "expected object, got %s", describe(value))
		}
		for _, f := range node.Fields {
			child, present := obj[f.Name]
			fieldPath := append(path[:len(path):len(path)], f.Name)
			if !present {
				return mismatch(fieldPath, "missing required key")
			}
			if err := validate(child, f.Node, fieldPath); err != nil {
				return err
			}
		}
		return nil

	case KindSequence:
		seq, ok := value.([]any)
		if !ok {
			return mismatch(path, "expected sequence, got %s", describe(value))
		}
		if len(seq) == 0 {
			return mismatch(path, "sequence must not be empty")
		}
		return nil

	default:
		return mismatch(path, "unknown schema %s", node.Kind)
	}
}

func mismatch(path []string, format string, args ...any) *SchemaError {
	return &SchemaError{Path: strings.Join(path, "."), Reason: fmt.Sprintf(format, args...)}
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "sequence"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
