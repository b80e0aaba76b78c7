// Package syntax defines the rich, surface instruction set produced by the
// function assembler (lang/assembler): a superset of the executable
// instruction set (lang/instr) that still carries structured control-flow
// forms. The preprocessor (lang/preprocess) consumes a slice of Instr and
// lowers it to flat, jump-based executable instructions.
package syntax

import "github.com/mna/calx/lang/types"

// Op identifies the kind of a surface instruction.
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
	Echo
	Unreachable
	Nop
	Quit
	Return
	Assert
	Inspect

	// structured control flow, resolved by the preprocessor
	Block
	BlockEnd
	Br
	BrIf
	If
	ThenEnd
	ElseEnd

	// name-resolved forms
	Call
	ReturnCall
	CallImport
)

// Instr is one surface instruction. Only the fields relevant to Op are
// populated; see the field comments for which Op owns which field.
type Instr struct {
	Op Op

	// Const
	Value types.Value

	// LocalGet, LocalSet, LocalTee, GlobalGet, GlobalSet: local/global index
	Index int

	// Quit: exit code
	Code int

	// Assert: failure message
	Message string

	// Call, ReturnCall, CallImport: callee name
	Name string

	// Br, BrIf: enclosing-block depth (0 = innermost)
	Depth int

	// Block, BlockEnd: true if this block is a loop
	Looped bool
	// Block: declared param/return types
	ParamTypes []types.Type
	RetTypes   []types.Type
	// Block: absolute index of the first body instruction (From) and of the
	// instruction one past the matching BlockEnd (To). Since every syntax
	// instruction lowers to exactly one executable instruction (see
	// lang/preprocess), these are already final instruction indices.
	From, To int

	// If: declared return types, absolute index of the instruction one past
	// the matching ElseEnd, i.e. the first then-branch instruction (ElseAt),
	// and of the instruction one past the matching ThenEnd (To, shared field
	// with Block).
	IfRetTypes []types.Type
	ElseAt     int
}
