package preprocess_test

import (
	"testing"

	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/instr"
	"github.com/mna/calx/lang/preprocess"
	"github.com/mna/calx/lang/reader"
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

func ops(instrs []instr.Instruction) []instr.Op {
	out := make([]instr.Op, len(instrs))
	for i, in := range instrs {
		out[i] = in.Op
	}
	return out
}

func TestFunctionSimpleArithmetic(t *testing.T) {
	fn := assembleOne(t, `(fn main (-> i64) (const 1) (const 2) (i.add) (return))`)
	out, err := preprocess.Function(fn, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []instr.Op{instr.Const, instr.Const, instr.IntAdd, instr.Return}, ops(out))
}

func TestFunctionReturnDepthMismatchIsError(t *testing.T) {
	fn := assembleOne(t, `(fn main (-> i64) (const 1) (const 2) (return))`)
	_, err := preprocess.Function(fn, nil, nil)
	require.Error(t, err)
}

func TestFunctionFallsOffEndMustMatchReturnArity(t *testing.T) {
	fn := assembleOne(t, `(fn main (-> i64) (const 1))`)
	out, err := preprocess.Function(fn, nil, nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFunctionIfLowersToJumps(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (const 1) (if (-> i64) (do (const 2)) (do (const 3))) (return))`)
	out, err := preprocess.Function(fn, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 7)
	assert.Equal(t, instr.JmpIf, out[1].Op)
	assert.Equal(t, instr.Const, out[2].Op)
	assert.Equal(t, instr.Jmp, out[3].Op)
	assert.Equal(t, instr.Const, out[4].Op)
	assert.Equal(t, instr.Jmp, out[5].Op)
	// both branches jump to the same exit point, the trailing return
	assert.Equal(t, out[3].Index, out[5].Index)
	assert.Equal(t, 6, out[3].Index)
}

func TestFunctionLoopBranchTargetsHeader(t *testing.T) {
	fn := assembleOne(t, `(fn f (->) (loop (->) (br 0)))`)
	out, err := preprocess.Function(fn, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, instr.Jmp, out[1].Op)
	assert.Equal(t, 1, out[1].Index) // jumps back to the loop body start, not its own Block marker
}

func TestFunctionBrWithNoEnclosingBlockIsError(t *testing.T) {
	src := assembleOne(t, `(fn f (->) (br 0))`)
	_, err := preprocess.Function(src, nil, nil)
	require.Error(t, err)
}

func TestFunctionCallResolvesArityAndIndex(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (const 1) (call double) (return))`)
	funcs := map[string]preprocess.FuncRef{
		"double": {Index: 3, ParamTypes: []types.Type{types.TI64}, RetTypes: []types.Type{types.TI64}},
	}
	out, err := preprocess.Function(fn, funcs, nil)
	require.NoError(t, err)
	assert.Equal(t, instr.Call, out[1].Op)
	assert.Equal(t, 3, out[1].Index)
}

func TestFunctionCallUndefinedIsError(t *testing.T) {
	fn := assembleOne(t, `(fn f (->) (call missing))`)
	_, err := preprocess.Function(fn, nil, nil)
	require.Error(t, err)
}

func TestFunctionReturnCallRequiresExactDepth(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (const 1) (const 2) (return-call double))`)
	funcs := map[string]preprocess.FuncRef{
		"double": {Index: 0, ParamTypes: []types.Type{types.TI64}, RetTypes: []types.Type{types.TI64}},
	}
	_, err := preprocess.Function(fn, funcs, nil)
	require.Error(t, err)
}

func TestFunctionCallImportResolvesArity(t *testing.T) {
	fn := assembleOne(t, `(fn f (-> i64) (const 1) (call-import log) (return))`)
	imports := map[string]int{"log": 1}
	out, err := preprocess.Function(fn, nil, imports)
	require.NoError(t, err)
	assert.Equal(t, instr.CallImport, out[1].Op)
}
