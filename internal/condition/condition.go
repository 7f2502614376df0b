// Package condition implements the recursive boolean predicate trees that
// automation rules and policy documents are written in.
//
// The wire shape is JSON: a leaf is {"field": "payload.amount", "op": "gt",
// "value": 100000}; compounds are {"all": [...]} and {"any": [...]}. Trees
// are decoded once into a typed Node and evaluated against a context map
// with no side effects.
package condition

import (
	"encoding/json"
	"fmt"
)

// Op is a leaf comparison operator.
type Op string

// Supported leaf operators.
const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIncludes Op = "includes"
	OpExcludes Op = "excludes"
	OpExists   Op = "exists"
	OpMissing  Op = "missing"
)

var validOps = map[Op]bool{
	OpEq: true, OpNeq: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIncludes: true, OpExcludes: true,
	OpExists: true, OpMissing: true,
}

// Node is a node in a condition tree: Leaf, All or Any.
type Node interface {
	node()
}

// Leaf compares a dotted-path field of the context against a literal value.
type Leaf struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value,omitempty"`
}

// All is a conjunction. An empty All is vacuously true.
type All struct {
	Children []Node
}

// Any is a disjunction. An empty Any is vacuously false.
type Any struct {
	Children []Node
}

func (Leaf) node() {}
func (All) node()  {}
func (Any) node()  {}

// wireNode mirrors the JSON shape for decoding. Pointers distinguish an
// explicitly empty list from an absent key.
type wireNode struct {
	All   *[]json.RawMessage `json:"all,omitempty"`
	Any   *[]json.RawMessage `json:"any,omitempty"`
	Field string             `json:"field,omitempty"`
	Op    Op                 `json:"op,omitempty"`
	Value any                `json:"value,omitempty"`
}

// Parse decodes a condition tree from its JSON wire shape. A node carrying
// an "all" key is a conjunction, "any" a disjunction, anything else a leaf.
// Leaves with unknown operators are rejected.
func Parse(raw []byte) (Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty condition")
	}

	var w wireNode
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decoding condition: %w", err)
	}

	return parseWire(&w)
}

func parseWire(w *wireNode) (Node, error) {
	if w.All != nil && w.Any != nil {
		return nil, fmt.Errorf("condition node cannot carry both all and any")
	}

	if w.All != nil {
		children, err := parseChildren(*w.All)
		if err != nil {
			return nil, err
		}
		return All{Children: children}, nil
	}

	if w.Any != nil {
		children, err := parseChildren(*w.Any)
		if err != nil {
			return nil, err
		}
		return Any{Children: children}, nil
	}

	if !validOps[w.Op] {
		return nil, fmt.Errorf("unknown operator %q", w.Op)
	}

	return Leaf{Field: w.Field, Op: w.Op, Value: w.Value}, nil
}

func parseChildren(raws []json.RawMessage) ([]Node, error) {
	children := make([]Node, 0, len(raws))
	for i, raw := range raws {
		child, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, child)
	}
	return children, nil
}

// Marshal encodes a condition tree back into its JSON wire shape.
func Marshal(n Node) ([]byte, error) {
	return json.Marshal(toWire(n))
}

func toWire(n Node) any {
	switch v := n.(type) {
	case Leaf:
		return map[string]any{"field": v.Field, "op": v.Op, "value": v.Value}
	case All:
		children := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			children = append(children, toWire(c))
		}
		return map[string]any{"all": children}
	case Any:
		children := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			children = append(children, toWire(c))
		}
		return map[string]any{"any": children}
	default:
		return nil
	}
}
