package machine_test

import (
	"testing"

	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/machine"
	"github.com/mna/calx/lang/reader"
	"github.com/mna/calx/lang/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string) *machine.VM {
	t.Helper()
	nodes, err := reader.Read(src)
	require.NoError(t, err)

	var sources []*assembler.Source
	for _, n := range nodes {
		fn, err := assembler.Assemble(n)
		require.NoError(t, err)
		sources = append(sources, fn)
	}
	vm, err := machine.New(sources, nil)
	require.NoError(t, err)
	return vm
}

func TestSimpleArithmeticReturn(t *testing.T) {
	vm := build(t, `(fn main (-> i64) (const 1) (const 2) (i.add) (return))`)
	out, err := vm.Run("main", nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.I64(3)}, out)
}

func TestComparisonAndAssert(t *testing.T) {
	vm := build(t, `(fn main (->) (const 3) (const 3) (i.eq) (assert |expected 3 to equal 3))`)
	_, err := vm.Run("main", nil)
	require.NoError(t, err)
}

func TestAssertFailureReturnsError(t *testing.T) {
	vm := build(t, `(fn main (->) (const 1) (const 2) (i.eq) (assert |numbers differ))`)
	_, err := vm.Run("main", nil)
	require.Error(t, err)
	var merr *machine.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "numbers differ", merr.Msg)
}

// fib(n) = n if n < 2, else fib(n-1) + fib(n-2); computed via regular
// (non-tail) recursive calls, so this also exercises Go-level call-stack
// growth for ordinary calls as opposed to return-call.
func TestRecursiveFib(t *testing.T) {
	vm := build(t, `
(fn fib ((n i64) -> i64)
  (local.get $n) (const 2) (i.lt)
  (if (-> i64)
    (do (local.get $n))
    (do
      (local.get $n) (const -1) (i.add) (call fib)
      (local.get $n) (const -2) (i.add) (call fib)
      (i.add))))
`)
	out, err := vm.Run("fib", []types.Value{types.I64(10)})
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.I64(55)}, out)
}

// sum(n) totals 1..n via a counted loop wrapped in a block: br-if depth 1
// breaks out through the enclosing block, br depth 0 continues the loop.
func TestLoopBasedSum(t *testing.T) {
	vm := build(t, `
(fn sum ((n i64) -> i64)
  (const 1) (local.set $i)
  (const 0) (local.set $acc)
  (block (->)
    (loop (->)
      (local.get $i) (local.get $n) (i.gt)
      (br-if 1)
      (local.get $acc) (local.get $i) (i.add) (local.set $acc)
      (local.get $i) (const 1) (i.add) (local.set $i)
      (br 0)))
  (local.get $acc)
  (return))
`)
	out, err := vm.Run("sum", []types.Value{types.I64(1000)})
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.I64(500500)}, out)
}

// dup/drop in equal measure must leave the operand stack net-zero: this is
// enforced statically by the preprocessor, not at runtime, so a successful
// assemble+preprocess (via a successful Run) is itself the assertion.
func TestStackDisciplineDupDrop(t *testing.T) {
	vm := build(t, `(fn main (->) (const 1) (dup) (drop) (drop))`)
	_, err := vm.Run("main", nil)
	require.NoError(t, err)
}

// even/odd mutually tail-call each other via return-call; run long enough
// (1,000,000 steps) that Go-stack growth from a non-tail implementation
// would blow the stack or at least be measurably slower/deeper.
func TestTailCallEvenOdd(t *testing.T) {
	vm := build(t, `
(fn even ((n i64) -> i64)
  (local.get $n) (const 0) (i.eq)
  (if (-> i64)
    (do (const 1))
    (do (local.get $n) (const -1) (i.add) (return-call odd))))

(fn odd ((n i64) -> i64)
  (local.get $n) (const 0) (i.eq)
  (if (-> i64)
    (do (const 0))
    (do (local.get $n) (const -1) (i.add) (return-call even))))
`)
	out, err := vm.Run("even", []types.Value{types.I64(1000000)})
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.I64(1)}, out)
}

func TestCallImport(t *testing.T) {
	nodes, err := reader.Read(`(fn main (-> i64) (const 10) (call-import double) (return))`)
	require.NoError(t, err)
	fn, err := assembler.Assemble(nodes[0])
	require.NoError(t, err)

	imports := map[string]machine.Import{
		"double": {
			Arity: 1,
			Fn: func(args []types.Value) (types.Value, error) {
				return args[0].(types.I64) * 2, nil
			},
		},
	}
	vm, err := machine.New([]*assembler.Source{fn}, imports)
	require.NoError(t, err)

	out, err := vm.Run("main", nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.I64(20)}, out)
}
