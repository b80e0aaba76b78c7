package machine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/calx/internal/filetest"
	"github.com/mna/calx/lang/assembler"
	"github.com/mna/calx/lang/machine"
	"github.com/mna/calx/lang/reader"
	"github.com/stretchr/testify/require"
)

func TestDumpGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".calx") {
		t.Run(fi.Name(), func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			require.NoError(t, err)

			nodes, err := reader.Read(string(b))
			require.NoError(t, err)

			sources := make([]*assembler.Source, len(nodes))
			for i, n := range nodes {
				s, err := assembler.Assemble(n)
				require.NoError(t, err)
				sources[i] = s
			}

			vm, err := machine.New(sources, nil)
			require.NoError(t, err)

			var out string
			for _, name := range vm.FunctionNames() {
				s, err := vm.Dump(name)
				require.NoError(t, err)
				out += s
			}
			filetest.DiffOutput(t, fi, out, resultDir, new(bool))
		})
	}
}
