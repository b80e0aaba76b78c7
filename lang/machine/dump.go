package machine

import (
	"fmt"
	"strings"

	"github.com/mna/calx/lang/instr"
)

// inspect prints a non-destructive snapshot of the current frame's locals
// and the operand stack to stdout; it is the runtime counterpart of the
// `inspect` instruction, which deliberately touches neither.
func (vm *VM) inspect(fr *Frame) {
	var b strings.Builder
	fmt.Fprintf(&b, "inspect %s pc=%d\n  locals:", fr.Name, fr.Pointer)
	for i, l := range fr.Locals {
		fmt.Fprintf(&b, " $%d=%s", i, l.String())
	}
	fmt.Fprintf(&b, "\n  stack:")
	for _, v := range vm.stack {
		fmt.Fprintf(&b, " %s", v.String())
	}
	fmt.Fprintln(vm.stdout(), b.String())
}

// Dump renders a function's compiled instruction stream in a textual form
// similar to the Rust original's Display implementation for CalxFunc: one
// instruction per line, prefixed with its absolute index.
func (vm *VM) Dump(name string) (string, error) {
	idx, ok := vm.funcByName[name]
	if !ok {
		return "", fmt.Errorf("calx: no such function %q", name)
	}
	fn := vm.functions[idx]

	var b strings.Builder
	fmt.Fprintf(&b, "fn %s", fn.Name)
	if len(fn.ParamTypes) > 0 {
		fmt.Fprintf(&b, " params=%v", fn.ParamTypes)
	}
	if len(fn.RetTypes) > 0 {
		fmt.Fprintf(&b, " rets=%v", fn.RetTypes)
	}
	b.WriteByte('\n')
	for i, in := range fn.Code {
		fmt.Fprintf(&b, "%4d: %s\n", i, describe(in))
	}
	return b.String(), nil
}

func describe(in instr.Instruction) string {
	switch in.Op {
	case instr.Const:
		return fmt.Sprintf("%s %s", in.Op, in.Value.String())
	case instr.LocalGet, instr.LocalSet, instr.LocalTee, instr.GlobalGet, instr.GlobalSet, instr.Jmp, instr.JmpIf, instr.Call:
		return fmt.Sprintf("%s %d", in.Op, in.Index)
	case instr.ReturnCall, instr.CallImport:
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	case instr.Quit:
		return fmt.Sprintf("%s %d", in.Op, in.Code)
	case instr.Assert:
		if in.Message != "" {
			return fmt.Sprintf("%s %q", in.Op, in.Message)
		}
		return in.Op.String()
	default:
		return in.Op.String()
	}
}
