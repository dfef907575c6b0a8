package scenegraph

import (
	"fmt"
)

// alignFlag in a node's meta flags requests 4-byte alignment after the value.
const alignFlag = 0x4000

// maxDepth bounds nesting while reading values from a type tree.
const maxDepth = 128

// TypeNode is one field description in a type tree.
type TypeNode struct {
	Type     string
	Name     string
	ByteSize int32
	Level    uint8
	MetaFlag int32
	Children []*TypeNode
}

func (n *TypeNode) aligned() bool { return n.MetaFlag&alignFlag != 0 }

// Pair is one entry of a serialized map.
type Pair struct {
	Key   any
	Value any
}

// Tree is a decoded class value keyed by field name.
type Tree map[string]any

// Has reports whether the tree carries key.
func (t Tree) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// String returns the string value stored at key, or "" when the field is
// missing or of another kind. Byte payloads are returned as text.
func (t Tree) String(key string) string {
	switch v := t[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int returns the integer value stored at key.
func (t Tree) Int(key string) (int64, bool) {
	return AsInt(t[key])
}

// Bool returns the boolean value stored at key.
func (t Tree) Bool(key string) bool {
	v, _ := t[key].(bool)
	return v
}

// Tree returns the nested class stored at key.
func (t Tree) Tree(key string) (Tree, bool) {
	v, ok := t[key].(Tree)
	return v, ok
}

// List returns the vector stored at key.
func (t Tree) List(key string) ([]any, bool) {
	v, ok := t[key].([]any)
	return v, ok
}

// Bytes returns the raw payload stored at key.
func (t Tree) Bytes(key string) []byte {
	switch v := t[key].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// AsInt converts a decoded integer value to int64.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// buildTypeTree turns the flat, level-ordered node list into a tree.
func buildTypeTree(flat []*TypeNode) (*TypeNode, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("type tree has no nodes")
	}
	root := flat[0]
	stack := []*TypeNode{root}
	for _, node := range flat[1:] {
		for len(stack) > 0 && stack[len(stack)-1].Level >= node.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			return nil, fmt.Errorf("type tree node %q at level %d has no parent", node.Name, node.Level)
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack, node)
	}
	return root, nil
}

// readTree decodes an object's payload against its root type node.
func readTree(root *TypeNode, r *reader) (Tree, error) {
	tree := make(Tree, len(root.Children))
	for _, child := range root.Children {
		v, err := readValue(child, r, 0)
		if err != nil {
			return nil, err
		}
		tree[child.Name] = v
	}
	if r.err != nil {
		return nil, r.err
	}
	return tree, nil
}

func readValue(node *TypeNode, r *reader, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("field %q: nesting deeper than %d", node.Name, maxDepth)
	}
	align := node.aligned()
	var value any
	switch node.Type {
	case "SInt8":
		value = int64(int8(r.u8()))
	case "UInt8", "char":
		value = int64(r.u8())
	case "short", "SInt16":
		value = int64(r.i16())
	case "UInt16", "unsigned short":
		value = int64(r.u16())
	case "int", "SInt32":
		value = int64(r.i32())
	case "UInt32", "unsigned int", "Type*":
		value = int64(r.u32())
	case "long long", "SInt64":
		value = r.i64()
	case "UInt64", "unsigned long long", "FileSize":
		value = int64(r.u64())
	case "float":
		value = float64(r.f32())
	case "double":
		value = r.f64()
	case "bool":
		value = r.boolean()
	case "string":
		n := r.count(1)
		value = string(r.bytes(n))
		r.align(4)
	case "TypelessData":
		n := r.count(1)
		value = append([]byte(nil), r.bytes(n)...)
	case "map":
		if len(node.Children) == 0 || len(node.Children[0].Children) < 2 {
			return nil, fmt.Errorf("field %q: malformed map node", node.Name)
		}
		array := node.Children[0]
		pair := array.Children[1]
		if len(pair.Children) < 2 {
			return nil, fmt.Errorf("field %q: malformed map pair", node.Name)
		}
		if array.aligned() {
			align = true
		}
		n := r.count(1)
		pairs := make([]Pair, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			key, err := readValue(pair.Children[0], r, depth+1)
			if err != nil {
				return nil, err
			}
			val, err := readValue(pair.Children[1], r, depth+1)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, Pair{Key: key, Value: val})
		}
		value = pairs
	default:
		if len(node.Children) > 0 && node.Children[0].Type == "Array" {
			array := node.Children[0]
			if len(array.Children) < 2 {
				return nil, fmt.Errorf("field %q: malformed array node", node.Name)
			}
			if array.aligned() {
				align = true
			}
			elem := array.Children[1]
			n := r.count(1)
			items := make([]any, 0, n)
			for i := 0; i < n && r.err == nil; i++ {
				item, err := readValue(elem, r, depth+1)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			value = items
			break
		}
		class := make(Tree, len(node.Children))
		for _, child := range node.Children {
			v, err := readValue(child, r, depth+1)
			if err != nil {
				return nil, err
			}
			class[child.Name] = v
		}
		value = class
	}
	if align {
		r.align(4)
	}
	if r.err != nil {
		return nil, fmt.Errorf("field %q: %w", node.Name, r.err)
	}
	return value, nil
}
