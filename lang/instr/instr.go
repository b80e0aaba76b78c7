// Package instr defines the flat executable instruction set: the output of
// the preprocessor (lang/preprocess) and the input to the interpreter
// (lang/machine). No structured-control forms remain here; Block/Loop/If
// have all been lowered to absolute Jmp/JmpIf.
package instr

import "github.com/mna/calx/lang/types"

// Increment this whenever the executable instruction set changes shape, for
// anyone persisting a compiled program (e.g. a future binary encoder).
const Edition = "0.1"

// Op identifies an executable instruction.
type Op uint8

const ( //nolint:revive
	LocalGet Op = iota
	LocalSet
	LocalTee
	LocalNew
	GlobalGet
	GlobalSet
	GlobalNew
	Const
	Dup
	Drop
	IntAdd
	IntMul
	IntDiv
	IntRem
	IntNeg
	IntShr
	IntShl
	IntEq
	IntNe
	IntLt
	IntLe
	IntGt
	IntGe
	Add
	Mul
	Div
	Neg
	NewList
	ListGet
	ListSet
	NewLink
	And
	Or
	Not
	Jmp
	JmpIf
	Echo
	Call
	ReturnCall
	CallImport
	Unreachable
	Nop
	Quit
	Return
	Assert
	Inspect
)

var opNames = [...]string{
	LocalGet:    "local.get",
	LocalSet:    "local.set",
	LocalTee:    "local.tee",
	LocalNew:    "local.new",
	GlobalGet:   "global.get",
	GlobalSet:   "global.set",
	GlobalNew:   "global.new",
	Const:       "const",
	Dup:         "dup",
	Drop:        "drop",
	IntAdd:      "i.add",
	IntMul:      "i.mul",
	IntDiv:      "i.div",
	IntRem:      "i.rem",
	IntNeg:      "i.neg",
	IntShr:      "i.shr",
	IntShl:      "i.shl",
	IntEq:       "i.eq",
	IntNe:       "i.ne",
	IntLt:       "i.lt",
	IntLe:       "i.le",
	IntGt:       "i.gt",
	IntGe:       "i.ge",
	Add:         "add",
	Mul:         "mul",
	Div:         "div",
	Neg:         "neg",
	NewList:     "new-list",
	ListGet:     "list.get",
	ListSet:     "list.set",
	NewLink:     "new-link",
	And:         "and",
	Or:          "or",
	Not:         "not",
	Jmp:         "jmp",
	JmpIf:       "jmp-if",
	Echo:        "echo",
	Call:        "call",
	ReturnCall:  "return-call",
	CallImport:  "call-import",
	Unreachable: "unreachable",
	Nop:         "nop",
	Quit:        "quit",
	Return:      "return",
	Assert:      "assert",
	Inspect:     "inspect",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "<invalid op>"
}

// Instruction is one entry of a compiled function's instruction stream.
type Instruction struct {
	Op Op

	Value   types.Value // Const
	Index   int         // LocalGet/Set/Tee, GlobalGet/Set, Jmp/JmpIf target, Call function index
	Code    int         // Quit exit code
	Message string      // Assert failure message
	Name    string      // ReturnCall, CallImport callee name
}

// Arity describes the static stack effect of an instruction: how many
// operands it consumes and how many it produces. Call, ReturnCall,
// CallImport, Return, Quit, Jmp and Unreachable carry arity (0, 0) here, and
// JmpIf only its predicate (1, 0); all of them are validated by dedicated
// preprocessor logic instead of this table (their real effect depends on
// the callee or branch target, not the opcode alone).
func Arity(op Op) (consumed, produced int) {
	switch op {
	case LocalGet:
		return 0, 1
	case LocalSet:
		return 1, 0
	case LocalTee:
		return 1, 1
	case LocalNew:
		return 0, 0
	case GlobalGet:
		return 0, 1
	case GlobalSet:
		return 1, 0
	case GlobalNew:
		return 0, 0
	case Const:
		return 0, 1
	case Dup:
		return 1, 2
	case Drop:
		return 1, 0
	case IntAdd, IntMul, IntDiv, IntRem, IntShr, IntShl,
		IntEq, IntNe, IntLt, IntLe, IntGt, IntGe:
		return 2, 1
	case IntNeg:
		return 1, 1
	case Add, Mul, Div:
		return 2, 1
	case Neg, Not:
		return 1, 1
	case NewList:
		return 0, 1
	case ListGet:
		return 2, 1
	case ListSet:
		return 3, 0
	case NewLink:
		return 0, 1
	case And, Or:
		return 2, 1
	case Echo:
		return 1, 0
	case Assert:
		return 1, 0
	case JmpIf:
		return 1, 0
	case Jmp, Return, Call, ReturnCall, CallImport, Unreachable, Nop, Quit, Inspect:
		return 0, 0
	default:
		panic("instr: unknown opcode")
	}
}
