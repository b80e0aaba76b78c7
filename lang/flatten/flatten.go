// Package flatten lifts nested prefix expressions into straight postfix
// order, while leaving structured-control forms (block, loop, if, do)
// untouched so the assembler can recurse into their bodies itself.
package flatten

import (
	"fmt"

	"github.com/mna/calx/lang/reader"
)

// structuralHeads names the instruction keywords whose list is emitted
// as-is, without lifting its children: the assembler handles their bodies
// with dedicated logic.
var structuralHeads = map[string]bool{
	"block": true,
	"loop":  true,
	"if":    true,
	"do":    true,
}

// One flattens a single surface expression (a reader.Node list) into an
// ordered sequence of top-level expressions whose sequential evaluation is
// equivalent to the original prefix form: computations nested as list
// arguments are hoisted before the instruction that consumes their result.
func One(n reader.Node) ([]reader.Node, error) {
	if n.IsLeaf {
		return nil, fmt.Errorf("line %d: a leaf cannot appear as a top-level instruction: %q", n.Line, n.Leaf)
	}
	if len(n.Children) == 0 {
		return nil, fmt.Errorf("line %d: empty expression", n.Line)
	}
	head := n.Children[0]
	if !head.IsLeaf {
		return nil, fmt.Errorf("line %d: instruction name must be a leaf, got a list", n.Line)
	}

	if structuralHeads[head.Leaf] {
		return []reader.Node{n}, nil
	}

	var out []reader.Node
	current := []reader.Node{head}
	for _, child := range n.Children[1:] {
		if child.IsLeaf {
			current = append(current, child)
			continue
		}
		sub, err := One(child)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	out = append(out, reader.Node{Children: current, Line: n.Line})
	return out, nil
}

// All flattens a sequence of top-level expressions (typically a function
// body) and concatenates their flattened forms in order.
func All(ns []reader.Node) ([]reader.Node, error) {
	var out []reader.Node
	for _, n := range ns {
		flat, err := One(n)
		if err != nil {
			return nil, err
		}
		out = append(out, flat...)
	}
	return out, nil
}
