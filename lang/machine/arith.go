package machine

import (
	"fmt"

	"github.com/mna/calx/lang/instr"
	"github.com/mna/calx/lang/types"
)

// intBinary implements the i.*-prefixed family: strictly typed i64
// arithmetic, comparison and bit-shift operations.
func intBinary(op instr.Op, x, y types.Value) (types.Value, error) {
	xi, ok := x.(types.I64)
	if !ok {
		return nil, fmt.Errorf("%v: expected i64 left operand, got %s", op, x.Type())
	}
	yi, ok := y.(types.I64)
	if !ok {
		return nil, fmt.Errorf("%v: expected i64 right operand, got %s", op, y.Type())
	}

	switch op {
	case instr.IntAdd:
		return xi + yi, nil
	case instr.IntMul:
		return xi * yi, nil
	case instr.IntDiv:
		if yi == 0 {
			return nil, fmt.Errorf("i.div: division by zero")
		}
		return xi / yi, nil
	case instr.IntRem:
		if yi == 0 {
			return nil, fmt.Errorf("i.rem: division by zero")
		}
		return xi % yi, nil
	case instr.IntShr:
		if yi < 0 || yi > 63 {
			return nil, fmt.Errorf("i.shr: shift count %d out of range [0,63]", yi)
		}
		return xi >> uint(yi), nil
	case instr.IntShl:
		if yi < 0 || yi > 63 {
			return nil, fmt.Errorf("i.shl: shift count %d out of range [0,63]", yi)
		}
		return xi << uint(yi), nil
	case instr.IntEq:
		return types.Bool(xi == yi), nil
	case instr.IntNe:
		return types.Bool(xi != yi), nil
	case instr.IntLt:
		return types.Bool(xi < yi), nil
	case instr.IntLe:
		return types.Bool(xi <= yi), nil
	case instr.IntGt:
		return types.Bool(xi > yi), nil
	case instr.IntGe:
		return types.Bool(xi >= yi), nil
	default:
		panic("machine: unreachable int op")
	}
}

// genericBinary implements the untyped add/mul/div family: it dispatches on
// the runtime type of its operands, which must agree (both i64 or both
// f64).
func genericBinary(op instr.Op, x, y types.Value) (types.Value, error) {
	switch xv := x.(type) {
	case types.I64:
		yv, ok := y.(types.I64)
		if !ok {
			return nil, fmt.Errorf("%v: mismatched operand types i64 and %s", op, y.Type())
		}
		switch op {
		case instr.Add:
			return xv + yv, nil
		case instr.Mul:
			return xv * yv, nil
		case instr.Div:
			return nil, fmt.Errorf("div: i64 operands not supported, use i.div")
		}
	case types.F64:
		yv, ok := y.(types.F64)
		if !ok {
			return nil, fmt.Errorf("%v: mismatched operand types f64 and %s", op, y.Type())
		}
		switch op {
		case instr.Add:
			return xv + yv, nil
		case instr.Mul:
			return xv * yv, nil
		case instr.Div:
			if yv == 0 {
				return nil, fmt.Errorf("div: division by zero")
			}
			return xv / yv, nil
		}
	}
	return nil, fmt.Errorf("%v: unsupported operand type %s", op, x.Type())
}

func genericNeg(x types.Value) (types.Value, error) {
	switch xv := x.(type) {
	case types.I64:
		return -xv, nil
	case types.F64:
		return -xv, nil
	default:
		return nil, fmt.Errorf("neg: unsupported operand type %s", x.Type())
	}
}

func listGet(lst, idx types.Value) (types.Value, error) {
	l, ok := lst.(*types.List)
	if !ok {
		return nil, fmt.Errorf("list.get: expected list, got %s", lst.Type())
	}
	i, ok := idx.(types.I64)
	if !ok {
		return nil, fmt.Errorf("list.get: expected i64 index, got %s", idx.Type())
	}
	if i < 0 || int(i) >= len(l.Elems) {
		return nil, fmt.Errorf("list.get: index %d out of range (length %d)", i, len(l.Elems))
	}
	return l.Elems[i], nil
}

func listSet(lst, idx, val types.Value) error {
	l, ok := lst.(*types.List)
	if !ok {
		return fmt.Errorf("list.set: expected list, got %s", lst.Type())
	}
	i, ok := idx.(types.I64)
	if !ok {
		return fmt.Errorf("list.set: expected i64 index, got %s", idx.Type())
	}
	if int(i) == len(l.Elems) {
		l.Elems = append(l.Elems, val)
		return nil
	}
	if i < 0 || int(i) > len(l.Elems) {
		return fmt.Errorf("list.set: index %d out of range (length %d)", i, len(l.Elems))
	}
	l.Elems[i] = val
	return nil
}
