package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/calx/lang/machine"
	"github.com/mna/calx/lang/types"
	"github.com/mna/mainer"
)

// Run assembles and preprocesses args[0], then calls its entry function
// (c.Entry) with the remaining args parsed as calx values.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	vm, err := load(args[0], nil)
	if err != nil {
		return printError(stdio, err)
	}
	vm.MaxSteps = c.MaxSteps
	vm.MaxCallDepth = c.MaxCallDepth
	vm.Stdout = stdio.Stdout

	params := make([]types.Value, len(args[1:]))
	for i, a := range args[1:] {
		v, err := types.Parse(a)
		if err != nil {
			return printError(stdio, fmt.Errorf("argument %d: %w", i, err))
		}
		params[i] = v
	}

	results, err := vm.Run(c.Entry, params)
	if err != nil {
		if merr, ok := err.(*machine.Error); ok {
			fmt.Fprint(stdio.Stderr, merr.Error())
			return merr
		}
		return printError(stdio, err)
	}

	for _, r := range results {
		fmt.Fprintln(stdio.Stdout, r.String())
	}
	return nil
}
