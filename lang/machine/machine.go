// Package machine implements the virtual machine that executes a calx
// program's preprocessed, executable instruction streams.
package machine

import (
	"fmt"
	"io"
	"os"

	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/instr"
	"github.com/mna/calx/lang/preprocess"
	"github.com/mna/calx/lang/types"
)

// Import is a host-provided callable, reachable from calx code via
// call-import. It always produces exactly one value.
type Import struct {
	Arity int
	Fn    func(args []types.Value) (types.Value, error)
}

// VM holds a fully preprocessed program: its function table, its global
// variables, and its host imports. A VM is built once by New and can then
// Run its entry function any number of times (Run resets the globals and
// call stack, but not the compiled code, between runs).
type VM struct {
	functions  []*Function
	funcByName map[string]int
	imports    map[string]Import

	globals []types.Value
	stack   []types.Value
	frames  []*Frame
	steps   int  // instructions executed by the current Run
	quit    bool // set by `quit 0` so that every active frame unwinds

	// MaxSteps bounds the number of executed instructions before Run aborts
	// with an error. Zero means unlimited.
	MaxSteps int
	// MaxCallDepth bounds the depth of the (non-tail) call stack. Zero means
	// unlimited.
	MaxCallDepth int

	// Stdout receives output from Echo and Inspect. Defaults to os.Stdout
	// when nil.
	Stdout io.Writer
}

// New preprocesses already-assembled sources into a runnable VM. imports maps
// call-import names to their host implementation; it may be nil.
func New(sources []*assembler.Source, imports map[string]Import) (*VM, error) {
	if imports == nil {
		imports = map[string]Import{}
	}

	funcByName := make(map[string]int, len(sources))
	funcRefs := make(map[string]preprocess.FuncRef, len(sources))
	for i, src := range sources {
		if _, dup := funcByName[src.Name]; dup {
			return nil, fmt.Errorf("duplicate function %q", src.Name)
		}
		funcByName[src.Name] = i
		funcRefs[src.Name] = preprocess.FuncRef{Index: i, ParamTypes: src.ParamTypes, RetTypes: src.RetTypes}
	}

	importArity := make(map[string]int, len(imports))
	for name, imp := range imports {
		importArity[name] = imp.Arity
	}

	functions := make([]*Function, len(sources))
	for i, src := range sources {
		code, err := preprocess.Function(src, funcRefs, importArity)
		if err != nil {
			return nil, err
		}
		functions[i] = &Function{
			Name:       src.Name,
			ParamTypes: src.ParamTypes,
			RetTypes:   src.RetTypes,
			LocalNames: src.LocalNames,
			Code:       code,
		}
	}

	return &VM{
		functions:  functions,
		funcByName: funcByName,
		imports:    imports,
	}, nil
}

// FunctionNames returns the names of every function defined in the VM, in
// declaration order.
func (vm *VM) FunctionNames() []string {
	names := make([]string, len(vm.functions))
	for i, fn := range vm.functions {
		names[i] = fn.Name
	}
	return names
}

// Run invokes the named entry function with args and executes it to
// completion. It resets globals and the call stack before running, so a VM
// can be reused across independent runs of the same compiled program.
func (vm *VM) Run(entry string, args []types.Value) ([]types.Value, error) {
	idx, ok := vm.funcByName[entry]
	if !ok {
		return nil, fmt.Errorf("calx: no such function %q", entry)
	}
	fn := vm.functions[idx]
	if len(args) != len(fn.ParamTypes) {
		return nil, fmt.Errorf("calx: %s: expected %d argument(s), got %d", entry, len(fn.ParamTypes), len(args))
	}
	for i, a := range args {
		if a.Type() != fn.ParamTypes[i] {
			return nil, fmt.Errorf("calx: %s: argument %d: expected %s, got %s", entry, i, fn.ParamTypes[i], a.Type())
		}
	}

	vm.globals = nil
	vm.stack = nil
	vm.frames = nil
	vm.steps = 0
	vm.quit = false

	return vm.call(fn, args)
}

// call pushes a new Frame for fn, runs it to completion (recursing into Go
// for any nested non-tail Call it executes), and pops the frame before
// returning. This is where the call stack actually grows; return-call
// never reaches this path for the tail-called function, it mutates the
// current frame in place instead (see Frame.reset and the ReturnCall case
// in run).
func (vm *VM) call(fn *Function, args []types.Value) ([]types.Value, error) {
	if vm.MaxCallDepth > 0 && len(vm.frames) >= vm.MaxCallDepth {
		return nil, vm.fail(fmt.Sprintf("call depth exceeds limit of %d", vm.MaxCallDepth))
	}

	fr := &Frame{InitialStackSize: len(vm.stack)}
	fr.reset(fn, args)
	vm.frames = append(vm.frames, fr)
	defer func() {
		vm.frames = vm.frames[:len(vm.frames)-1]
	}()

	return vm.run(fr)
}

// run executes frame's code until it returns, tail-calls (looping in
// place, reusing frame), or faults.
func (vm *VM) run(fr *Frame) ([]types.Value, error) {
	for {
		if vm.MaxSteps > 0 {
			vm.steps++
			if vm.steps > vm.MaxSteps {
				return nil, vm.fail(fmt.Sprintf("exceeded step limit of %d", vm.MaxSteps))
			}
		}

		if fr.Pointer >= len(fr.Code) {
			// fell off the end without an explicit return: the preprocessor
			// already verified the stack holds exactly len(fr.RetTypes) values.
			return vm.popN(len(fr.RetTypes)), nil
		}

		in := fr.Code[fr.Pointer]
		fr.Pointer++

		switch in.Op {
		case instr.Nop:
			// block/loop markers and explicit nop

		case instr.Const:
			vm.push(in.Value)

		case instr.Dup:
			vm.push(vm.peek(0))

		case instr.Drop:
			vm.pop()

		case instr.LocalGet:
			vm.push(fr.Locals[in.Index])
		case instr.LocalSet:
			fr.Locals[in.Index] = vm.pop()
		case instr.LocalTee:
			fr.Locals[in.Index] = vm.peek(0)
		case instr.LocalNew:
			fr.Locals = append(fr.Locals, types.Nil)

		case instr.GlobalGet:
			vm.push(vm.globals[in.Index])
		case instr.GlobalSet:
			vm.globals[in.Index] = vm.pop()
		case instr.GlobalNew:
			vm.globals = append(vm.globals, types.Nil)

		case instr.IntAdd, instr.IntMul, instr.IntDiv, instr.IntRem, instr.IntShr, instr.IntShl,
			instr.IntEq, instr.IntNe, instr.IntLt, instr.IntLe, instr.IntGt, instr.IntGe:
			y, x := vm.pop(), vm.pop()
			v, err := intBinary(in.Op, x, y)
			if err != nil {
				return nil, vm.fail(err.Error())
			}
			vm.push(v)
		case instr.IntNeg:
			x := vm.pop()
			xi, ok := x.(types.I64)
			if !ok {
				return nil, vm.fail(fmt.Sprintf("i.neg: expected i64, got %s", x.Type()))
			}
			vm.push(-xi)

		case instr.Add, instr.Mul, instr.Div:
			y, x := vm.pop(), vm.pop()
			v, err := genericBinary(in.Op, x, y)
			if err != nil {
				return nil, vm.fail(err.Error())
			}
			vm.push(v)
		case instr.Neg:
			v, err := genericNeg(vm.pop())
			if err != nil {
				return nil, vm.fail(err.Error())
			}
			vm.push(v)

		case instr.NewList:
			vm.push(types.NewList(nil))
		case instr.ListGet:
			idx, lst := vm.pop(), vm.pop()
			v, err := listGet(lst, idx)
			if err != nil {
				return nil, vm.fail(err.Error())
			}
			vm.push(v)
		case instr.ListSet:
			val, idx, lst := vm.pop(), vm.pop(), vm.pop()
			if err := listSet(lst, idx, val); err != nil {
				return nil, vm.fail(err.Error())
			}

		case instr.NewLink:
			// the original Cirru-link compound structure has no runtime
			// representation in this value model; kept as a source-compatible
			// no-op that produces nil.
			vm.push(types.Nil)

		case instr.And, instr.Or:
			y, x := vm.pop(), vm.pop()
			xb, xok := x.(types.Bool)
			yb, yok := y.(types.Bool)
			if !xok || !yok {
				return nil, vm.fail(fmt.Sprintf("%v: expected bool operands, got %s and %s", in.Op, x.Type(), y.Type()))
			}
			if in.Op == instr.And {
				vm.push(xb && yb)
			} else {
				vm.push(xb || yb)
			}
		case instr.Not:
			x := vm.pop()
			xb, ok := x.(types.Bool)
			if !ok {
				return nil, vm.fail(fmt.Sprintf("not: expected bool, got %s", x.Type()))
			}
			vm.push(!xb)

		case instr.Jmp:
			fr.Pointer = in.Index
		case instr.JmpIf:
			if vm.pop().Truthy() {
				fr.Pointer = in.Index
			}

		case instr.Echo:
			fmt.Fprintln(vm.stdout(), vm.pop().String())
		case instr.Assert:
			v := vm.pop()
			if !v.Truthy() {
				msg := in.Message
				if msg == "" {
					msg = "assertion failed"
				}
				return nil, vm.fail(msg)
			}
		case instr.Inspect:
			vm.inspect(fr)

		case instr.Call:
			callee := vm.functions[in.Index]
			args := vm.popN(len(callee.ParamTypes))
			results, err := vm.call(callee, args)
			if err != nil || vm.quit {
				return nil, err
			}
			for _, r := range results {
				vm.push(r)
			}

		case instr.ReturnCall:
			callee := vm.functions[in.Index]
			args := vm.popN(len(callee.ParamTypes))
			fr.reset(callee, args)
			continue

		case instr.CallImport:
			imp, ok := vm.imports[in.Name]
			if !ok {
				return nil, vm.fail(fmt.Sprintf("call-import: undefined import %q", in.Name))
			}
			args := vm.popN(imp.Arity)
			result, err := imp.Fn(args)
			if err != nil {
				return nil, vm.fail(fmt.Sprintf("call-import %s: %v", in.Name, err))
			}
			vm.push(result)

		case instr.Return:
			return vm.popN(len(fr.RetTypes)), nil

		case instr.Quit:
			if in.Code == 0 {
				vm.quit = true
				return nil, nil
			}
			return nil, vm.fail(fmt.Sprintf("quit with code %d", in.Code))

		case instr.Unreachable:
			return nil, vm.fail("reached unreachable instruction")

		default:
			return nil, vm.fail(fmt.Sprintf("unimplemented opcode %v", in.Op))
		}
	}
}

// stdout returns the writer Echo and Inspect write to, defaulting to
// os.Stdout.
func (vm *VM) stdout() io.Writer {
	if vm.Stdout != nil {
		return vm.Stdout
	}
	return os.Stdout
}

func (vm *VM) push(v types.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() types.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(fromTop int) types.Value {
	return vm.stack[len(vm.stack)-1-fromTop]
}

// popN pops n values and returns them in original (bottom-to-top) order.
func (vm *VM) popN(n int) []types.Value {
	if n == 0 {
		return nil
	}
	start := len(vm.stack) - n
	out := make([]types.Value, n)
	copy(out, vm.stack[start:])
	vm.stack = vm.stack[:start]
	return out
}
