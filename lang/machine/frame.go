package machine

import (
	"github.com/mna/calx/lang/instr"
	"github.com/mna/calx/lang/types"
)

// Frame is one active function activation: its locals, its position in its
// own code, and where its operand-stack region begins. A return-call
// (tail call) replaces a Frame's contents in place via reset, so the call
// stack never grows on a tail call chain.
type Frame struct {
	Name             string
	Locals           []types.Value
	Pointer          int
	InitialStackSize int
	RetTypes         []types.Type
	Code             []instr.Instruction
}

// reset replaces the frame's callee-related state in place (name, code,
// locals, return types, program counter) while leaving InitialStackSize
// untouched: a return-call requires the operand stack to already sit at
// exactly that depth (the preprocessor enforces this statically), so the
// new callee resumes consuming the same stack region the old one owned.
func (fr *Frame) reset(fn *Function, args []types.Value) {
	fr.Name = fn.Name
	fr.RetTypes = fn.RetTypes
	fr.Code = fn.Code
	fr.Pointer = 0
	fr.Locals = make([]types.Value, len(fn.LocalNames))
	copy(fr.Locals, args)
	for i := len(args); i < len(fr.Locals); i++ {
		fr.Locals[i] = types.Nil
	}
}
