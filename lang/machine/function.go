package machine

import (
	"github.com/mna/calx/lang/instr"
	"github.com/mna/calx/lang/types"
)

// Function is one function's compiled, executable form: the output of
// preprocess.Function, indexed by the VM's function table.
type Function struct {
	Name       string
	ParamTypes []types.Type
	RetTypes   []types.Type
	LocalNames []string
	Code       []instr.Instruction
}
