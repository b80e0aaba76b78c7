package assembler_test

import (
	"testing"

	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/reader"
	"github.com/mna/calx/lang/syntax"
	"github.com/mna/calx/lang/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assembleOne(t *testing.T, src string) *assembler.Source {
	t.Helper()
	nodes, err := reader.Read(src)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	fn, err := assembler.Assemble(nodes[0])
	require.NoError(t, err)
	return fn
}

func ops(instrs []syntax.Instr) []syntax.Op {
	out := make([]syntax.Op, len(instrs))
	for i, in := range instrs {
		out[i] = in.Op
	}
	return out
}

func TestAssembleSimpleArithmetic(t *testing.T) {
	fn := assembleOne(t, `(fn main (-> i64) (const 1) (const 2) (i.add) (return))`)
	assert.Equal(t, "main", fn.Name)
	assert.Equal(t, []types.Type{types.TI64}, fn.RetTypes)
	assert.Equal(t, []syntax.Op{syntax.Const, syntax.Const, syntax.IntAdd, syntax.Return}, ops(fn.Syntax))
}

func TestAssembleNamedParams(t *testing.T) {
	fn := assembleOne(t, `(fn add ((a i64) (b i64) -> i64) (local.get $a) (local.get $b) (i.add))`)
	assert.Equal(t, []types.Type{types.TI64, types.TI64}, fn.ParamTypes)
	assert.Equal(t, []string{"$a", "$b"}, fn.LocalNames)
	require.Len(t, fn.Syntax, 3)
	assert.Equal(t, 0, fn.Syntax[0].Index)
	assert.Equal(t, 1, fn.Syntax[1].Index)
}

func TestAssembleAnonymousParams(t *testing.T) {
	fn := assembleOne(t, `(fn add (i64 i64 -> i64) (local.get $0) (local.get $1) (i.add))`)
	assert.Equal(t, []string{"$0", "$1"}, fn.LocalNames)
}

func TestAssembleBlock(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (block (-> i64) (const 1)) (return))`)
	require.Len(t, fn.Syntax, 4)
	assert.Equal(t, syntax.Block, fn.Syntax[0].Op)
	assert.Equal(t, syntax.Const, fn.Syntax[1].Op)
	assert.Equal(t, syntax.BlockEnd, fn.Syntax[2].Op)
	assert.Equal(t, syntax.Return, fn.Syntax[3].Op)
	assert.Equal(t, 1, fn.Syntax[0].From)
	assert.Equal(t, 3, fn.Syntax[0].To)
}

func TestAssembleLoopMarksLooped(t *testing.T) {
	fn := assembleOne(t, `(fn f (->) (loop (->) (br 0)))`)
	require.Len(t, fn.Syntax, 3)
	assert.True(t, fn.Syntax[0].Looped)
	assert.True(t, fn.Syntax[2].Looped)
	assert.Equal(t, 0, fn.Syntax[1].Depth)
}

func TestAssembleIfWithElse(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (if (-> i64) (do (const 1)) (do (const 2))))`)
	// emission order: If, else-body(const 2), ElseEnd, then-body(const 1), ThenEnd
	require.Len(t, fn.Syntax, 5)
	assert.Equal(t, []syntax.Op{syntax.If, syntax.Const, syntax.ElseEnd, syntax.Const, syntax.ThenEnd}, ops(fn.Syntax))
	assert.Equal(t, types.I64(2), fn.Syntax[1].Value)
	assert.Equal(t, types.I64(1), fn.Syntax[3].Value)
	assert.Equal(t, 3, fn.Syntax[0].ElseAt)
	assert.Equal(t, 5, fn.Syntax[0].To)
}

func TestAssembleIfWithoutElse(t *testing.T) {
	fn := assembleOne(t, `(fn f (->) (if (->) (do (const 1) (drop))))`)
	// no else-branch: If, ElseEnd, const, drop, ThenEnd
	assert.Equal(t, []syntax.Op{syntax.If, syntax.ElseEnd, syntax.Const, syntax.Drop, syntax.ThenEnd}, ops(fn.Syntax))
	assert.Equal(t, 2, fn.Syntax[0].ElseAt)
}

func TestAssembleNestedExpressionFlattened(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (echo (i.add (const 1) (const 2))))`)
	assert.Equal(t, []syntax.Op{syntax.Const, syntax.Const, syntax.IntAdd, syntax.Echo}, ops(fn.Syntax))
}

func TestAssembleCallAndTailCall(t *testing.T) {
	fn := assembleOne(t, `(fn f (->) (call other) (return-call other))`)
	assert.Equal(t, "other", fn.Syntax[0].Name)
	assert.Equal(t, syntax.Call, fn.Syntax[0].Op)
	assert.Equal(t, "other", fn.Syntax[1].Name)
	assert.Equal(t, syntax.ReturnCall, fn.Syntax[1].Op)
}

func TestAssembleUnknownInstructionIsError(t *testing.T) {
	nodes, err := reader.Read(`(fn f (->) (bogus))`)
	require.NoError(t, err)
	_, err = assembler.Assemble(nodes[0])
	require.Error(t, err)
}
