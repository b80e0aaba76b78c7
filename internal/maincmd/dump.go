package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
)

// Dump assembles and preprocesses args[0] and prints the resulting
// executable instructions for every function it defines, or only for the
// functions named by the remaining args, if any.
func (c *Cmd) Dump(ctx context.Context, stdio mainer.Stdio, args []string) error {
	vm, err := load(args[0], nil)
	if err != nil {
		return printError(stdio, err)
	}

	names := vm.FunctionNames()
	if len(args[1:]) > 0 {
		names = args[1:]
	}

	for _, name := range names {
		s, err := vm.Dump(name)
		if err != nil {
			return printError(stdio, err)
		}
		fmt.Fprint(stdio.Stdout, s)
	}
	return nil
}
