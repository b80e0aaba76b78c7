package machine

import (
	"fmt"
	"strings"

	"github.com/mna/calx/lang/types"
)

// FrameSnapshot is a read-only copy of one call-stack entry captured at the
// moment an Error was raised, innermost frame last.
type FrameSnapshot struct {
	Name    string
	Pointer int
	Locals  []types.Value
}

// Error is returned by VM.Run when execution faults: a failed assert, an
// unreachable instruction, a type mismatch, a step or call-depth limit, or
// an explicit non-zero quit. It carries enough of the machine's state at
// the fault to print a useful diagnostic without re-running the program.
type Error struct {
	Msg     string
	Frames  []FrameSnapshot
	Stack   []types.Value
	Globals []types.Value
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "calx: %s", e.Msg)
	for i := len(e.Frames) - 1; i >= 0; i-- {
		fr := e.Frames[i]
		fmt.Fprintf(&b, "\n\tat %s (pc=%d)", fr.Name, fr.Pointer)
	}
	return b.String()
}

// fail builds an *Error snapshotting the VM's current stack, globals and
// call stack.
func (vm *VM) fail(msg string) *Error {
	frames := make([]FrameSnapshot, len(vm.frames))
	for i, fr := range vm.frames {
		locals := make([]types.Value, len(fr.Locals))
		copy(locals, fr.Locals)
		frames[i] = FrameSnapshot{Name: fr.Name, Pointer: fr.Pointer, Locals: locals}
	}
	stack := make([]types.Value, len(vm.stack))
	copy(stack, vm.stack)
	globals := make([]types.Value, len(vm.globals))
	copy(globals, vm.globals)

	return &Error{Msg: msg, Frames: frames, Stack: stack, Globals: globals}
}
