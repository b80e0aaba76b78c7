package assembler

import "github.com/dolthub/swiss"

// localsTracker assigns each `$name` local its first-seen index, starting
// with the function's parameters (named or auto-named `$0`, `$1`, ...) and
// growing as new names are encountered in local.get/set/tee instruction
// slots. It backs the assembler's local-name table (Source.LocalNames).
type localsTracker struct {
	byName *swiss.Map[string, int]
	names  []string
}

func newLocalsTracker() *localsTracker {
	return &localsTracker{byName: swiss.NewMap[string, int](8)}
}

// declare registers name (already known, e.g. a function parameter) at the
// next available index and returns that index.
func (lt *localsTracker) declare(name string) int {
	idx := len(lt.names)
	lt.names = append(lt.names, name)
	lt.byName.Put(name, idx)
	return idx
}

// indexOf returns the index assigned to name, assigning it the next
// available index on first use.
func (lt *localsTracker) indexOf(name string) int {
	if idx, ok := lt.byName.Get(name); ok {
		return idx
	}
	return lt.declare(name)
}

func (lt *localsTracker) count() int { return len(lt.names) }
