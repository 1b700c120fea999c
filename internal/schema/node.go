// Package schema describes the shape of a generated audit report as a tagged
// variant tree. The same tree renders the JSON template embedded in the prompt
// and drives structural validation of the model's output.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags a Node
type Kind int

const (
	KindLeaf Kind = iota
	KindObject
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a named child of an object node. Order is significant.
type Field struct {
	Name string
	Node *Node
}

// Node is a leaf, an object with ordered fields, or a sequence of Elem
type Node struct {
	Kind   Kind
	Fields []Field
	Elem   *Node
}

// Leaf returns a scalar node rendered as ""
func Leaf() *Node {
	return &Node{Kind: KindLeaf}
}

// Object returns an object node with the given ordered fields
func Object(fields ...Field) *Node {
	return &Node{Kind: KindObject, Fields: fields}
}

// Sequence returns a sequence node whose elements look like elem
func Sequence(elem *Node) *Node {
	return &Node{Kind: KindSequence, Elem: elem}
}

// F pairs a field name with its node
func F(name string, node *Node) Field {
	return Field{Name: name, Node: node}
}

// Keys returns the field names of an object node in order
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	keys := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		keys[i] = f.Name
	}
	return keys
}

// Field returns the named child of an object node
func (n *Node) Field(name string) (*Node, bool) {
	if n == nil || n.Kind != KindObject {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Node, true
		}
	}
	return nil, false
}

// MarshalJSON renders the node as a template: leaves are "", sequences of
// leaves are [] and sequences of objects hold a single example element.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeTemplate(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Template renders the node as indented JSON for prompt embedding
func (n *Node) Template() (string, error) {
	raw, err := n.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (n *Node) writeTemplate(buf *bytes.Buffer) error {
	if n == nil {
		return fmt.Errorf("schema: nil node")
	}
	switch n.Kind {
	case KindLeaf:
		buf.WriteString(`""`)
	case KindObject:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(f.Name)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := f.Node.writeTemplate(buf); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
		}
		buf.WriteByte('}')
	case KindSequence:
		if n.Elem == nil {
			return fmt.Errorf("schema: sequence without element")
		}
		buf.WriteByte('[')
		if n.Elem.Kind != KindLeaf {
			if err := n.Elem.writeTemplate(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("schema: unknown %s", n.Kind)
	}
	return nil
}
