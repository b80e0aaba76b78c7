// Package preprocess validates a function's surface syntax instructions
// (lang/syntax) for stack-arity correctness and lowers its structured
// control-flow forms (block, loop, if) into the flat, jump-based executable
// instruction set (lang/instr) the machine interprets.
package preprocess

import (
	"fmt"

	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/instr"
	"github.com/mna/calx/lang/syntax"
	"github.com/mna/calx/lang/types"
)

// FuncRef is what the preprocessor needs to know about a callable function
// to validate call-sites: its declared arity, resolved to the function
// table index the machine will dispatch to.
type FuncRef struct {
	Index      int
	ParamTypes []types.Type
	RetTypes   []types.Type
}

// blockKind distinguishes the three structured-control label shapes the
// block-stack can hold.
type blockKind int

const (
	kindBlock blockKind = iota
	kindLoop
	kindIf
)

// label is a pending (unterminated) structured-control form: the depth the
// operand stack must reach to legally close it, and where Br/BrIf targeting
// it should jump.
type label struct {
	kind       blockKind
	paramTypes []types.Type
	retTypes   []types.Type
	finishSize int
	from, to   int // absolute executable-instruction indices
}

// Function validates and lowers one function's syntax instructions into its
// executable form. funcs resolves call/return-call callee names (including
// the function's own name, for recursion) and imports resolves call-import
// names to their declared arity (imports always produce exactly one value).
func Function(src *assembler.Source, funcs map[string]FuncRef, imports map[string]int) ([]instr.Instruction, error) {
	p := &preprocessor{
		src:     src,
		funcs:   funcs,
		imports: imports,
	}
	return p.run()
}

type preprocessor struct {
	src     *assembler.Source
	funcs   map[string]FuncRef
	imports map[string]int

	out    []instr.Instruction
	depth  int
	blocks []*label // full stack, Block/Loop/If all pushed here
	labels []*label // Block/Loop only, indexed by Br/BrIf depth
}

func (p *preprocessor) run() ([]instr.Instruction, error) {
	p.out = make([]instr.Instruction, len(p.src.Syntax))
	terminated := false

	for i, in := range p.src.Syntax {
		var err error
		terminated, err = p.step(i, in)
		if err != nil {
			return nil, fmt.Errorf("%s: instruction %d (%v): %w", p.src.Name, i, in.Op, err)
		}
	}

	if len(p.blocks) > 0 {
		return nil, fmt.Errorf("%s: %d unterminated block(s)", p.src.Name, len(p.blocks))
	}
	if !terminated && p.depth != len(p.src.RetTypes) {
		return nil, fmt.Errorf("%s: falls off the end with stack depth %d, want %d", p.src.Name, p.depth, len(p.src.RetTypes))
	}
	return p.out, nil
}

func (p *preprocessor) step(i int, in syntax.Instr) (terminated bool, err error) {
	switch in.Op {
	case syntax.Block, syntax.BlockEnd:
		return false, p.stepBlock(i, in)
	case syntax.Br, syntax.BrIf:
		return p.stepBr(i, in)
	case syntax.If, syntax.ElseEnd, syntax.ThenEnd:
		return false, p.stepIf(i, in)
	case syntax.Call:
		return false, p.stepCall(i, in, false)
	case syntax.ReturnCall:
		return true, p.stepCall(i, in, true)
	case syntax.CallImport:
		return false, p.stepCallImport(i, in)
	case syntax.Return:
		if p.depth != len(p.src.RetTypes) {
			return false, fmt.Errorf("return: depth %d, want %d", p.depth, len(p.src.RetTypes))
		}
		p.out[i] = instr.Instruction{Op: instr.Return}
		return true, nil
	case syntax.Quit:
		p.out[i] = instr.Instruction{Op: instr.Quit, Code: in.Code}
		return true, nil
	case syntax.Unreachable:
		p.out[i] = instr.Instruction{Op: instr.Unreachable}
		return true, nil
	default:
		return false, p.stepSimple(i, in)
	}
}

func (p *preprocessor) stepBlock(i int, in syntax.Instr) error {
	switch in.Op {
	case syntax.Block:
		if p.depth < len(in.ParamTypes) {
			return fmt.Errorf("block: depth %d below param count %d", p.depth, len(in.ParamTypes))
		}
		kind := kindBlock
		if in.Looped {
			kind = kindLoop
		}
		lbl := &label{
			kind:       kind,
			paramTypes: in.ParamTypes,
			retTypes:   in.RetTypes,
			finishSize: p.depth - len(in.ParamTypes) + len(in.RetTypes),
			from:       in.From,
			to:         in.To,
		}
		p.blocks = append(p.blocks, lbl)
		p.labels = append(p.labels, lbl)
		p.out[i] = instr.Instruction{Op: instr.Nop}
	case syntax.BlockEnd:
		if len(p.blocks) == 0 {
			return fmt.Errorf("block-end: no matching block")
		}
		lbl := p.blocks[len(p.blocks)-1]
		if p.depth != lbl.finishSize {
			return fmt.Errorf("block-end: depth %d, want %d", p.depth, lbl.finishSize)
		}
		p.blocks = p.blocks[:len(p.blocks)-1]
		p.labels = p.labels[:len(p.labels)-1]
		p.depth = lbl.finishSize
		p.out[i] = instr.Instruction{Op: instr.Nop}
	}
	return nil
}

func (p *preprocessor) stepBr(i int, in syntax.Instr) (terminated bool, err error) {
	if in.Depth >= len(p.labels) {
		return false, fmt.Errorf("%v: depth %d exceeds %d enclosing block(s)", in.Op, in.Depth, len(p.labels))
	}
	lbl := p.labels[len(p.labels)-1-in.Depth]
	target := lbl.to
	required := lbl.retTypes
	if lbl.kind == kindLoop {
		target = lbl.from
		required = lbl.paramTypes
	}

	op := instr.Jmp
	consumed := 0
	if in.Op == syntax.BrIf {
		op = instr.JmpIf
		consumed = 1
	}
	if p.depth-consumed < len(required) {
		return false, fmt.Errorf("%v: depth %d insufficient for target needing %d", in.Op, p.depth, len(required))
	}
	p.depth -= consumed
	p.out[i] = instr.Instruction{Op: op, Index: target}
	return in.Op == syntax.Br, nil
}

func (p *preprocessor) stepIf(i int, in syntax.Instr) error {
	switch in.Op {
	case syntax.If:
		if p.depth < 1 {
			return fmt.Errorf("if: requires a predicate on the stack")
		}
		p.depth--
		lbl := &label{
			kind:       kindIf,
			retTypes:   in.IfRetTypes,
			finishSize: p.depth + len(in.IfRetTypes),
			to:         in.To,
		}
		p.blocks = append(p.blocks, lbl)
		p.out[i] = instr.Instruction{Op: instr.JmpIf, Index: in.ElseAt}
	case syntax.ElseEnd:
		if len(p.blocks) == 0 || p.blocks[len(p.blocks)-1].kind != kindIf {
			return fmt.Errorf("else-end: no matching if")
		}
		lbl := p.blocks[len(p.blocks)-1]
		if p.depth != lbl.finishSize {
			return fmt.Errorf("else-end: depth %d, want %d", p.depth, lbl.finishSize)
		}
		p.depth = lbl.finishSize - len(lbl.retTypes)
		p.out[i] = instr.Instruction{Op: instr.Jmp, Index: lbl.to}
	case syntax.ThenEnd:
		if len(p.blocks) == 0 || p.blocks[len(p.blocks)-1].kind != kindIf {
			return fmt.Errorf("then-end: no matching if")
		}
		lbl := p.blocks[len(p.blocks)-1]
		if p.depth != lbl.finishSize {
			return fmt.Errorf("then-end: depth %d, want %d", p.depth, lbl.finishSize)
		}
		p.blocks = p.blocks[:len(p.blocks)-1]
		p.depth = lbl.finishSize
		p.out[i] = instr.Instruction{Op: instr.Jmp, Index: lbl.to}
	}
	return nil
}

func (p *preprocessor) stepCall(i int, in syntax.Instr, tail bool) error {
	ref, ok := p.funcs[in.Name]
	if !ok {
		return fmt.Errorf("call to undefined function %q", in.Name)
	}
	if tail {
		if p.depth != len(ref.ParamTypes) {
			return fmt.Errorf("return-call %s: depth %d, want exactly %d", in.Name, p.depth, len(ref.ParamTypes))
		}
		p.out[i] = instr.Instruction{Op: instr.ReturnCall, Index: ref.Index, Name: in.Name}
		return nil
	}
	if p.depth < len(ref.ParamTypes) {
		return fmt.Errorf("call %s: depth %d below param count %d", in.Name, p.depth, len(ref.ParamTypes))
	}
	p.depth += len(ref.RetTypes) - len(ref.ParamTypes)
	p.out[i] = instr.Instruction{Op: instr.Call, Index: ref.Index, Name: in.Name}
	return nil
}

func (p *preprocessor) stepCallImport(i int, in syntax.Instr) error {
	arity, ok := p.imports[in.Name]
	if !ok {
		return fmt.Errorf("call-import to undefined import %q", in.Name)
	}
	if p.depth < arity {
		return fmt.Errorf("call-import %s: depth %d below arity %d", in.Name, p.depth, arity)
	}
	p.depth += 1 - arity
	p.out[i] = instr.Instruction{Op: instr.CallImport, Name: in.Name}
	return nil
}

func (p *preprocessor) stepSimple(i int, in syntax.Instr) error {
	op, err := simpleOp(in.Op)
	if err != nil {
		return err
	}
	consumed, produced := instr.Arity(op)
	if p.depth < consumed {
		return fmt.Errorf("%v: depth %d below required %d", in.Op, p.depth, consumed)
	}
	p.depth += produced - consumed
	p.out[i] = instr.Instruction{
		Op:      op,
		Value:   in.Value,
		Index:   in.Index,
		Code:    in.Code,
		Message: in.Message,
		Name:    in.Name,
	}
	return nil
}

// simpleOp maps every syntax.Op that is not handled by dedicated logic
// (block/loop/if/br/call/return/quit/unreachable) onto its identically
// named instr.Op.
func simpleOp(op syntax.Op) (instr.Op, error) {
	switch op {
	case syntax.LocalGet:
		return instr.LocalGet, nil
	case syntax.LocalSet:
		return instr.LocalSet, nil
	case syntax.LocalTee:
		return instr.LocalTee, nil
	case syntax.LocalNew:
		return instr.LocalNew, nil
	case syntax.GlobalGet:
		return instr.GlobalGet, nil
	case syntax.GlobalSet:
		return instr.GlobalSet, nil
	case syntax.GlobalNew:
		return instr.GlobalNew, nil
	case syntax.Const:
		return instr.Const, nil
	case syntax.Dup:
		return instr.Dup, nil
	case syntax.Drop:
		return instr.Drop, nil
	case syntax.IntAdd:
		return instr.IntAdd, nil
	case syntax.IntMul:
		return instr.IntMul, nil
	case syntax.IntDiv:
		return instr.IntDiv, nil
	case syntax.IntRem:
		return instr.IntRem, nil
	case syntax.IntNeg:
		return instr.IntNeg, nil
	case syntax.IntShr:
		return instr.IntShr, nil
	case syntax.IntShl:
		return instr.IntShl, nil
	case syntax.IntEq:
		return instr.IntEq, nil
	case syntax.IntNe:
		return instr.IntNe, nil
	case syntax.IntLt:
		return instr.IntLt, nil
	case syntax.IntLe:
		return instr.IntLe, nil
	case syntax.IntGt:
		return instr.IntGt, nil
	case syntax.IntGe:
		return instr.IntGe, nil
	case syntax.Add:
		return instr.Add, nil
	case syntax.Mul:
		return instr.Mul, nil
	case syntax.Div:
		return instr.Div, nil
	case syntax.Neg:
		return instr.Neg, nil
	case syntax.NewList:
		return instr.NewList, nil
	case syntax.ListGet:
		return instr.ListGet, nil
	case syntax.ListSet:
		return instr.ListSet, nil
	case syntax.NewLink:
		return instr.NewLink, nil
	case syntax.And:
		return instr.And, nil
	case syntax.Or:
		return instr.Or, nil
	case syntax.Not:
		return instr.Not, nil
	case syntax.Echo:
		return instr.Echo, nil
	case syntax.Nop:
		return instr.Nop, nil
	case syntax.Assert:
		return instr.Assert, nil
	case syntax.Inspect:
		return instr.Inspect, nil
	default:
		return 0, fmt.Errorf("unexpected op %v in generic arity check", op)
	}
}
