// Package assembler turns a tree of leaves and lists (as produced by
// lang/reader) into a Source: a function's name, its parameter/return
// types, its local-name table, and its surface syntax instruction sequence
// — everything the preprocessor (lang/preprocess) needs to produce a
// compiled, executable function.
package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/calx/lang/flatten"
	"github.com/mna/calx/lang/reader"
	"github.com/mna/calx/lang/syntax"
	"github.com/mna/calx/lang/types"
)

// Source is an assembled function, immutable once returned by Assemble: its
// Syntax field is consumed (read-only) by the preprocessor.
type Source struct {
	Name       string
	ParamTypes []types.Type
	RetTypes   []types.Type
	LocalNames []string
	Syntax     []syntax.Instr
}

// Assemble parses one top-level `fn`/`defn` expression into a Source.
func Assemble(n reader.Node) (*Source, error) {
	if n.IsLeaf || len(n.Children) < 3 {
		return nil, fmt.Errorf("line %d: expected (fn <name> (<sig>) <body>...)", n.Line)
	}
	head := n.Children[0]
	if !head.IsLeaf || (head.Leaf != "fn" && head.Leaf != "defn") {
		return nil, fmt.Errorf("line %d: expected function to start with fn or defn", n.Line)
	}
	nameNode := n.Children[1]
	if !nameNode.IsLeaf {
		return nil, fmt.Errorf("line %d: function name must be a leaf", n.Line)
	}
	sigNode := n.Children[2]
	if sigNode.IsLeaf {
		return nil, fmt.Errorf("line %d: expected a signature list", sigNode.Line)
	}

	lt := newLocalsTracker()
	paramTypes, retTypes, err := parseFuncSignature(sigNode, lt)
	if err != nil {
		return nil, err
	}

	bodyExprs, err := flatten.All(n.Children[3:])
	if err != nil {
		return nil, err
	}
	instrs, err := buildInstrs(bodyExprs, lt, nil)
	if err != nil {
		return nil, err
	}

	return &Source{
		Name:       nameNode.Leaf,
		ParamTypes: paramTypes,
		RetTypes:   retTypes,
		LocalNames: append([]string(nil), lt.names...),
		Syntax:     instrs,
	}, nil
}

// parseFuncSignature parses `(T* -> T*)` and `((name T) -> T*)`-style
// function signatures, declaring each parameter (named or auto-named) in
// lt in order.
func parseFuncSignature(n reader.Node, lt *localsTracker) (params, rets []types.Type, err error) {
	seenArrow := false
	for _, c := range n.Children {
		if c.IsLeaf && c.Leaf == "->" {
			seenArrow = true
			continue
		}
		if !seenArrow {
			name, typ, err := parseParam(c)
			if err != nil {
				return nil, nil, err
			}
			lt.declare(autoParamName(lt, name))
			params = append(params, typ)
			continue
		}
		if !c.IsLeaf {
			return nil, nil, fmt.Errorf("line %d: return type must be a bare type token", c.Line)
		}
		typ, ok := types.ParseType(c.Leaf)
		if !ok {
			return nil, nil, fmt.Errorf("line %d: unknown type %q", c.Line, c.Leaf)
		}
		rets = append(rets, typ)
	}
	return params, rets, nil
}

func parseParam(c reader.Node) (name string, typ types.Type, err error) {
	if c.IsLeaf {
		typ, ok := types.ParseType(c.Leaf)
		if !ok {
			return "", 0, fmt.Errorf("line %d: unknown type %q", c.Line, c.Leaf)
		}
		return "", typ, nil
	}
	if len(c.Children) != 2 || !c.Children[0].IsLeaf || !c.Children[1].IsLeaf {
		return "", 0, fmt.Errorf("line %d: expected (name type) parameter", c.Line)
	}
	typ, ok := types.ParseType(c.Children[1].Leaf)
	if !ok {
		return "", 0, fmt.Errorf("line %d: unknown type %q", c.Children[1].Line, c.Children[1].Leaf)
	}
	return c.Children[0].Leaf, typ, nil
}

// autoParamName is called by parseFuncSignature to assign `$0`, `$1`, ...
// to anonymous parameters; declare itself does not know the index is a
// parameter, so the naming happens here before declare is invoked. Named
// parameters are declared under their `$`-prefixed name too, since that is
// how the body's local.get/set/tee instructions reference them.
func autoParamName(lt *localsTracker, given string) string {
	if given != "" {
		return "$" + given
	}
	return "$" + strconv.Itoa(lt.count())
}

// buildInstrs converts a sequence of already-flattened top-level
// expressions into surface instructions appended to out, recursing into
// block/loop/if bodies (whose children still require their own flattening
// pass). Nested bodies are appended to the same slice, so the From/To/ElseAt
// indices recorded for nested forms are absolute within the function.
func buildInstrs(exprs []reader.Node, lt *localsTracker, out []syntax.Instr) ([]syntax.Instr, error) {
	for _, e := range exprs {
		next, err := buildOne(e, lt, &out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

func buildOne(e reader.Node, lt *localsTracker, accP *[]syntax.Instr) ([]syntax.Instr, error) {
	acc := *accP
	if e.IsLeaf || len(e.Children) == 0 {
		return nil, fmt.Errorf("line %d: malformed instruction", e.Line)
	}
	head := e.Children[0]
	args := e.Children[1:]

	switch head.Leaf {
	case "block", "loop":
		return buildBlock(head.Leaf == "loop", e, args, lt, acc)
	case "if":
		return buildIf(e, args, lt, acc)
	case "do":
		// a bare `do` outside of block/if/loop context simply splices its body.
		body, err := flatten.All(args)
		if err != nil {
			return nil, err
		}
		return buildInstrs(body, lt, acc)
	default:
		instr, err := buildSimple(head, args, lt)
		if err != nil {
			return nil, err
		}
		return append(acc, instr), nil
	}
}

func buildBlock(looped bool, e reader.Node, args []reader.Node, lt *localsTracker, acc []syntax.Instr) ([]syntax.Instr, error) {
	if len(args) == 0 || args[0].IsLeaf {
		return nil, fmt.Errorf("line %d: expected a signature list for block/loop", e.Line)
	}
	params, rets, err := parseArrow(args[0])
	if err != nil {
		return nil, err
	}

	blockIdx := len(acc)
	acc = append(acc, syntax.Instr{Op: syntax.Block, Looped: looped, ParamTypes: params, RetTypes: rets})

	body, err := flatten.All(args[1:])
	if err != nil {
		return nil, err
	}
	acc, err = buildInstrs(body, lt, acc)
	if err != nil {
		return nil, err
	}
	acc = append(acc, syntax.Instr{Op: syntax.BlockEnd, Looped: looped})

	acc[blockIdx].From = blockIdx + 1
	acc[blockIdx].To = len(acc)
	return acc, nil
}

func buildIf(e reader.Node, args []reader.Node, lt *localsTracker, acc []syntax.Instr) ([]syntax.Instr, error) {
	if len(args) == 0 || args[0].IsLeaf {
		return nil, fmt.Errorf("line %d: expected a signature list for if", e.Line)
	}
	_, rets, err := parseArrow(args[0])
	if err != nil {
		return nil, err
	}

	var thenNode, elseNode *reader.Node
	switch len(args) {
	case 2:
		thenNode = &args[1]
	case 3:
		thenNode = &args[1]
		elseNode = &args[2]
	default:
		return nil, fmt.Errorf("line %d: if takes a signature and one or two (do ...) branches", e.Line)
	}

	ifIdx := len(acc)
	acc = append(acc, syntax.Instr{Op: syntax.If, IfRetTypes: rets})

	if elseNode != nil {
		elseBody, err := doBody(*elseNode)
		if err != nil {
			return nil, err
		}
		flat, err := flatten.All(elseBody)
		if err != nil {
			return nil, err
		}
		acc, err = buildInstrs(flat, lt, acc)
		if err != nil {
			return nil, err
		}
	}
	acc = append(acc, syntax.Instr{Op: syntax.ElseEnd})
	acc[ifIdx].ElseAt = len(acc)

	thenBody, err := doBody(*thenNode)
	if err != nil {
		return nil, err
	}
	flat, err := flatten.All(thenBody)
	if err != nil {
		return nil, err
	}
	acc, err = buildInstrs(flat, lt, acc)
	if err != nil {
		return nil, err
	}
	acc = append(acc, syntax.Instr{Op: syntax.ThenEnd})

	acc[ifIdx].To = len(acc)
	return acc, nil
}

// doBody unwraps a `(do expr...)` node into its child expressions.
func doBody(n reader.Node) ([]reader.Node, error) {
	if n.IsLeaf || len(n.Children) == 0 || !n.Children[0].IsLeaf || n.Children[0].Leaf != "do" {
		return nil, fmt.Errorf("line %d: expected (do ...)", n.Line)
	}
	return n.Children[1:], nil
}

// parseArrow parses a bare `(T* -> T*)` signature (no named parameters),
// used by block/loop/if.
func parseArrow(n reader.Node) (params, rets []types.Type, err error) {
	seenArrow := false
	for _, c := range n.Children {
		if c.IsLeaf && c.Leaf == "->" {
			seenArrow = true
			continue
		}
		if !c.IsLeaf {
			return nil, nil, fmt.Errorf("line %d: expected a bare type token", c.Line)
		}
		typ, ok := types.ParseType(c.Leaf)
		if !ok {
			return nil, nil, fmt.Errorf("line %d: unknown type %q", c.Line, c.Leaf)
		}
		if seenArrow {
			rets = append(rets, typ)
		} else {
			params = append(params, typ)
		}
	}
	return params, rets, nil
}

// localRef resolves a local.get/set/tee operand: `$name` is resolved (and
// declared on first use) through lt, a bare integer is used as a direct
// index (for locals introduced dynamically via local.new).
func localRef(leaf string, lt *localsTracker) (int, error) {
	if strings.HasPrefix(leaf, "$") {
		return lt.indexOf(leaf), nil
	}
	idx, err := strconv.Atoi(leaf)
	if err != nil {
		return 0, fmt.Errorf("invalid local reference %q", leaf)
	}
	return idx, nil
}

func buildSimple(head reader.Node, args []reader.Node, lt *localsTracker) (syntax.Instr, error) {
	leaf := func(i int) (string, error) {
		if i >= len(args) || !args[i].IsLeaf {
			return "", fmt.Errorf("line %d: %s: expected a leaf argument", head.Line, head.Leaf)
		}
		return args[i].Leaf, nil
	}
	requireArgs := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("line %d: %s: expected %d argument(s), got %d", head.Line, head.Leaf, n, len(args))
		}
		return nil
	}

	switch head.Leaf {
	case "local.get", "local.set", "local.tee":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		l, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		idx, err := localRef(l, lt)
		if err != nil {
			return syntax.Instr{}, err
		}
		op := map[string]syntax.Op{"local.get": syntax.LocalGet, "local.set": syntax.LocalSet, "local.tee": syntax.LocalTee}[head.Leaf]
		return syntax.Instr{Op: op, Index: idx}, nil
	case "local.new":
		if err := requireArgs(0); err != nil {
			return syntax.Instr{}, err
		}
		return syntax.Instr{Op: syntax.LocalNew}, nil
	case "global.get", "global.set":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		l, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		idx, err := strconv.Atoi(l)
		if err != nil {
			return syntax.Instr{}, fmt.Errorf("line %d: global index must be an integer: %q", head.Line, l)
		}
		op := syntax.GlobalGet
		if head.Leaf == "global.set" {
			op = syntax.GlobalSet
		}
		return syntax.Instr{Op: op, Index: idx}, nil
	case "global.new":
		if err := requireArgs(0); err != nil {
			return syntax.Instr{}, err
		}
		return syntax.Instr{Op: syntax.GlobalNew}, nil
	case "const":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		l, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		v, err := types.Parse(l)
		if err != nil {
			return syntax.Instr{}, fmt.Errorf("line %d: const: %w", head.Line, err)
		}
		return syntax.Instr{Op: syntax.Const, Value: v}, nil
	case "dup":
		return syntax.Instr{Op: syntax.Dup}, nil
	case "drop":
		return syntax.Instr{Op: syntax.Drop}, nil
	case "i.add":
		return syntax.Instr{Op: syntax.IntAdd}, nil
	case "i.mul":
		return syntax.Instr{Op: syntax.IntMul}, nil
	case "i.div":
		return syntax.Instr{Op: syntax.IntDiv}, nil
	case "i.rem":
		return syntax.Instr{Op: syntax.IntRem}, nil
	case "i.neg":
		return syntax.Instr{Op: syntax.IntNeg}, nil
	case "i.shr":
		return syntax.Instr{Op: syntax.IntShr}, nil
	case "i.shl":
		return syntax.Instr{Op: syntax.IntShl}, nil
	case "i.eq":
		return syntax.Instr{Op: syntax.IntEq}, nil
	case "i.ne":
		return syntax.Instr{Op: syntax.IntNe}, nil
	case "i.lt":
		return syntax.Instr{Op: syntax.IntLt}, nil
	case "i.le":
		return syntax.Instr{Op: syntax.IntLe}, nil
	case "i.gt":
		return syntax.Instr{Op: syntax.IntGt}, nil
	case "i.ge":
		return syntax.Instr{Op: syntax.IntGe}, nil
	case "add":
		return syntax.Instr{Op: syntax.Add}, nil
	case "mul":
		return syntax.Instr{Op: syntax.Mul}, nil
	case "div":
		return syntax.Instr{Op: syntax.Div}, nil
	case "neg":
		return syntax.Instr{Op: syntax.Neg}, nil
	case "new-list":
		return syntax.Instr{Op: syntax.NewList}, nil
	case "list.get":
		return syntax.Instr{Op: syntax.ListGet}, nil
	case "list.set":
		return syntax.Instr{Op: syntax.ListSet}, nil
	case "new-link":
		return syntax.Instr{Op: syntax.NewLink}, nil
	case "and":
		return syntax.Instr{Op: syntax.And}, nil
	case "or":
		return syntax.Instr{Op: syntax.Or}, nil
	case "not":
		return syntax.Instr{Op: syntax.Not}, nil
	case "br", "br-if":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		l, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		depth, err := strconv.Atoi(l)
		if err != nil {
			return syntax.Instr{}, fmt.Errorf("line %d: %s: depth must be an integer: %q", head.Line, head.Leaf, l)
		}
		op := syntax.Br
		if head.Leaf == "br-if" {
			op = syntax.BrIf
		}
		return syntax.Instr{Op: op, Depth: depth}, nil
	case "echo":
		return syntax.Instr{Op: syntax.Echo}, nil
	case "call":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		name, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		return syntax.Instr{Op: syntax.Call, Name: name}, nil
	case "return-call":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		name, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		return syntax.Instr{Op: syntax.ReturnCall, Name: name}, nil
	case "call-import":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		name, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		return syntax.Instr{Op: syntax.CallImport, Name: name}, nil
	case "unreachable":
		return syntax.Instr{Op: syntax.Unreachable}, nil
	case "nop", ";;":
		return syntax.Instr{Op: syntax.Nop}, nil
	case "quit":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		l, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		code, err := strconv.Atoi(l)
		if err != nil {
			return syntax.Instr{}, fmt.Errorf("line %d: quit: code must be an integer: %q", head.Line, l)
		}
		return syntax.Instr{Op: syntax.Quit, Code: code}, nil
	case "return":
		return syntax.Instr{Op: syntax.Return}, nil
	case "assert":
		if err := requireArgs(1); err != nil {
			return syntax.Instr{}, err
		}
		msg, err := leaf(0)
		if err != nil {
			return syntax.Instr{}, err
		}
		msg = strings.TrimPrefix(msg, "|")
		msg = strings.TrimPrefix(msg, ":")
		return syntax.Instr{Op: syntax.Assert, Message: msg}, nil
	case "inspect":
		return syntax.Instr{Op: syntax.Inspect}, nil
	default:
		return syntax.Instr{}, fmt.Errorf("line %d: unknown instruction: %s", head.Line, head.Leaf)
	}
}
