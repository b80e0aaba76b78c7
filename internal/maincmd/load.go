package maincmd

import (
	"fmt"
	"os"

	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/machine"
	"github.com/mna/calx/lang/reader"
)

// load reads filename, assembles every top-level function it defines and
// builds a VM from them. imports may be nil.
func load(filename string, imports map[string]machine.Import) (*machine.VM, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	nodes, err := reader.Read(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	sources := make([]*assembler.Source, len(nodes))
	for i, n := range nodes {
		s, err := assembler.Assemble(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		sources[i] = s
	}

	vm, err := machine.New(sources, imports)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return vm, nil
}
